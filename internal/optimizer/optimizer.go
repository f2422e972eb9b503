// Package optimizer is the outbound route-optimization client (D1): a thin
// VROOM/OSRM HTTP client called while the caller holds the tenant
// transaction from C5. Both services are best-effort -- a failure never
// fails the request, it just falls back to a cheaper in-process result.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Job struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
}

type Vehicle struct {
	ID       string   `json:"id"`
	Start    Location `json:"start"`
}

// Plan assigns each job to a vehicle in delivery order.
type Plan struct {
	Assignments []Assignment `json:"assignments"`
	Fallback    bool         `json:"fallback"`
}

type Assignment struct {
	VehicleID string   `json:"vehicleId"`
	JobIDs    []string `json:"jobIds"`
}

type RouteInfo struct {
	DistanceMeters float64 `json:"distanceMeters"`
	DurationSecs   float64 `json:"durationSecs"`
	Geometry       string  `json:"geometry"`
}

type Client struct {
	httpClient *http.Client
	vroomURL   string
	osrmURL    string
}

func NewClient(vroomURL, osrmURL string) *Client {
	return &Client{
		httpClient: &http.Client{},
		vroomURL:   vroomURL,
		osrmURL:    osrmURL,
	}
}

type vroomRequest struct {
	Jobs     []vroomJob     `json:"jobs"`
	Vehicles []vroomVehicle `json:"vehicles"`
}

type vroomJob struct {
	ID       string    `json:"id"`
	Location []float64 `json:"location"`
}

type vroomVehicle struct {
	ID    string    `json:"id"`
	Start []float64 `json:"start"`
}

type vroomResponse struct {
	Routes []struct {
		VehicleID string `json:"vehicle"`
		Steps     []struct {
			JobID string `json:"job"`
		} `json:"steps"`
	} `json:"routes"`
}

// Plan POSTs jobs/vehicles to VROOM_URL with a 30s deadline. Any
// transport error or non-2xx response falls back to a greedy
// nearest-neighbour assignment computed in-process and logs the
// fallback -- it never fails the caller's request.
func (c *Client) Plan(ctx context.Context, jobs []Job, vehicles []Vehicle) (Plan, error) {
	if c.vroomURL == "" {
		return greedyPlan(jobs, vehicles), nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	body := vroomRequest{}
	for _, j := range jobs {
		body.Jobs = append(body.Jobs, vroomJob{ID: j.ID, Location: []float64{j.Location.Lon, j.Location.Lat}})
	}
	for _, v := range vehicles {
		body.Vehicles = append(body.Vehicles, vroomVehicle{ID: v.ID, Start: []float64{v.Start.Lon, v.Start.Lat}})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Plan{}, fmt.Errorf("marshal vroom request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.vroomURL, bytes.NewReader(payload))
	if err != nil {
		return Plan{}, fmt.Errorf("build vroom request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("optimizer: vroom unreachable, falling back to greedy plan", "error", err)
		return greedyPlan(jobs, vehicles), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("optimizer: vroom returned non-2xx, falling back to greedy plan", "status", resp.StatusCode)
		return greedyPlan(jobs, vehicles), nil
	}

	var vr vroomResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		slog.Warn("optimizer: vroom response decode failed, falling back to greedy plan", "error", err)
		return greedyPlan(jobs, vehicles), nil
	}

	plan := Plan{}
	for _, route := range vr.Routes {
		a := Assignment{VehicleID: route.VehicleID}
		for _, step := range route.Steps {
			if step.JobID != "" {
				a.JobIDs = append(a.JobIDs, step.JobID)
			}
		}
		plan.Assignments = append(plan.Assignments, a)
	}
	return plan, nil
}

type osrmResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// Route calls OSRM_URL/route/v1/driving/... with a 15s deadline. Failure
// is logged and the caller proceeds without route geometry -- a zero
// RouteInfo is a legitimate "no geometry available" result, not an error.
func (c *Client) Route(ctx context.Context, coords []Location) (RouteInfo, error) {
	if c.osrmURL == "" || len(coords) < 2 {
		return RouteInfo{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	url := c.osrmURL + "/route/v1/driving/" + encodeCoords(coords) + "?overview=full"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("build osrm request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("optimizer: osrm unreachable, proceeding without route geometry", "error", err)
		return RouteInfo{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("optimizer: osrm returned non-2xx, proceeding without route geometry", "status", resp.StatusCode)
		return RouteInfo{}, nil
	}

	var or osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil || len(or.Routes) == 0 {
		slog.Warn("optimizer: osrm response decode failed, proceeding without route geometry", "error", err)
		return RouteInfo{}, nil
	}

	r := or.Routes[0]
	return RouteInfo{DistanceMeters: r.Distance, DurationSecs: r.Duration, Geometry: r.Geometry}, nil
}

func encodeCoords(coords []Location) string {
	s := ""
	for i, c := range coords {
		if i > 0 {
			s += ";"
		}
		s += fmt.Sprintf("%f,%f", c.Lon, c.Lat)
	}
	return s
}

// greedyPlan assigns each job to the nearest vehicle by straight-line
// distance, in the order jobs were given. It ignores capacity and routing
// constraints entirely -- a degraded-but-available substitute for VROOM,
// not an equivalent optimizer.
func greedyPlan(jobs []Job, vehicles []Vehicle) Plan {
	plan := Plan{Fallback: true}
	if len(vehicles) == 0 {
		return plan
	}

	byVehicle := make(map[string][]string, len(vehicles))
	for _, j := range jobs {
		best := vehicles[0]
		bestDist := haversine(j.Location, best.Start)
		for _, v := range vehicles[1:] {
			if d := haversine(j.Location, v.Start); d < bestDist {
				best, bestDist = v, d
			}
		}
		byVehicle[best.ID] = append(byVehicle[best.ID], j.ID)
	}

	for _, v := range vehicles {
		plan.Assignments = append(plan.Assignments, Assignment{VehicleID: v.ID, JobIDs: byVehicle[v.ID]})
	}
	return plan
}

func haversine(a, b Location) float64 {
	const earthRadiusMeters = 6371000.0
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
