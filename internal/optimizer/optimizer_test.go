package optimizer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/routecore/platform/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_NoVroomURLGoesStraightToGreedy(t *testing.T) {
	c := optimizer.NewClient("", "")

	jobs := []optimizer.Job{
		{ID: "job-near", Location: optimizer.Location{Lat: 52.01, Lon: 4.01}},
		{ID: "job-far", Location: optimizer.Location{Lat: 53.50, Lon: 6.00}},
	}
	vehicles := []optimizer.Vehicle{
		{ID: "van-1", Start: optimizer.Location{Lat: 52.00, Lon: 4.00}},
		{ID: "van-2", Start: optimizer.Location{Lat: 53.40, Lon: 5.90}},
	}

	plan, err := c.Plan(context.Background(), jobs, vehicles)
	require.NoError(t, err)
	assert.True(t, plan.Fallback)

	byVehicle := map[string][]string{}
	for _, a := range plan.Assignments {
		byVehicle[a.VehicleID] = a.JobIDs
	}
	assert.Contains(t, byVehicle["van-1"], "job-near")
	assert.Contains(t, byVehicle["van-2"], "job-far")
}

func TestPlan_VroomErrorStatusFallsBackToGreedy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := optimizer.NewClient(srv.URL, "")
	jobs := []optimizer.Job{{ID: "job-1", Location: optimizer.Location{Lat: 1, Lon: 1}}}
	vehicles := []optimizer.Vehicle{{ID: "van-1", Start: optimizer.Location{Lat: 1, Lon: 1}}}

	plan, err := c.Plan(context.Background(), jobs, vehicles)
	require.NoError(t, err)
	assert.True(t, plan.Fallback)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, []string{"job-1"}, plan.Assignments[0].JobIDs)
}

func TestPlan_VroomSuccessIsNotMarkedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"routes":[{"vehicle":"van-1","steps":[{"job":"job-1"}]}]}`))
	}))
	defer srv.Close()

	c := optimizer.NewClient(srv.URL, "")
	plan, err := c.Plan(context.Background(), []optimizer.Job{{ID: "job-1"}}, []optimizer.Vehicle{{ID: "van-1"}})
	require.NoError(t, err)
	assert.False(t, plan.Fallback)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "van-1", plan.Assignments[0].VehicleID)
	assert.Equal(t, []string{"job-1"}, plan.Assignments[0].JobIDs)
}

func TestPlan_NoVehiclesReturnsEmptyFallbackPlan(t *testing.T) {
	c := optimizer.NewClient("", "")
	plan, err := c.Plan(context.Background(), []optimizer.Job{{ID: "job-1"}}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Fallback)
	assert.Empty(t, plan.Assignments)
}

func TestRoute_NoOSRMURLReturnsZeroValue(t *testing.T) {
	c := optimizer.NewClient("", "")
	info, err := c.Route(context.Background(), []optimizer.Location{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}})
	require.NoError(t, err)
	assert.Zero(t, info)
}

func TestRoute_FewerThanTwoCoordsReturnsZeroValueEvenWithURL(t *testing.T) {
	c := optimizer.NewClient("", "http://osrm.example")
	info, err := c.Route(context.Background(), []optimizer.Location{{Lat: 1, Lon: 1}})
	require.NoError(t, err)
	assert.Zero(t, info)
}

func TestRoute_OSRMErrorStatusIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := optimizer.NewClient("", srv.URL)
	info, err := c.Route(context.Background(), []optimizer.Location{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}})
	require.NoError(t, err)
	assert.Zero(t, info)
}

func TestRoute_SuccessReturnsFirstRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"routes":[{"distance":1234.5,"duration":678.9,"geometry":"abc123"}]}`))
	}))
	defer srv.Close()

	c := optimizer.NewClient("", srv.URL)
	info, err := c.Route(context.Background(), []optimizer.Location{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1234.5, info.DistanceMeters)
	assert.Equal(t, 678.9, info.DurationSecs)
	assert.Equal(t, "abc123", info.Geometry)
}
