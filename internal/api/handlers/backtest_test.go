package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/service"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/testutil"
)

func setupBacktestHandler(t *testing.T) (*BacktestHandler, *service.BacktestService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc, _ := testutil.NewTestBacktestService(t, db)
	handler := NewBacktestHandler(svc, BacktestDefaults{
		InitialCapital:  10000,
		RebalanceMonths: 3,
		RiskFreeRate:    0.04,
	})
	return handler, svc
}

func TestBacktestHandler_Create(t *testing.T) {
	t.Run("accepts a valid request and applies defaults", func(t *testing.T) {
		handler, svc := setupBacktestHandler(t)

		body := `{
			"name": "my_run",
			"profile": "balanced",
			"tickers": ["AAPL", "MSFT", "GOOGL"],
			"start_date": "2021-01-04",
			"end_date": "2022-12-30"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/backtest", strings.NewReader(body))
		w := httptest.NewRecorder()

		handler.Create(w, req)

		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
		}

		var response CreateRunResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.RunID == "" {
			t.Fatal("Expected a run ID in the response")
		}
		svc.WaitForRun(response.RunID)

		run, err := svc.GetRun(context.Background(), response.RunID)
		if err != nil {
			t.Fatalf("GetRun() failed: %v", err)
		}
		if run.InitialCapital != 10000 || run.RebalanceMonths != 3 {
			t.Errorf("Expected configured defaults to apply, got capital=%v rebalance=%d",
				run.InitialCapital, run.RebalanceMonths)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler, _ := setupBacktestHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/backtest", strings.NewReader("{not json"))
		w := httptest.NewRecorder()

		handler.Create(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("rejects invalid fields with per-field details", func(t *testing.T) {
		handler, _ := setupBacktestHandler(t)

		body := `{
			"name": "bad name!",
			"profile": "balanced",
			"tickers": ["AAPL", "not a ticker!"],
			"start_date": "2022-01-01",
			"end_date": "2021-01-01"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/backtest", strings.NewReader(body))
		w := httptest.NewRecorder()

		handler.Create(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
		for _, field := range []string{"name", "tickers", "end_date"} {
			if !strings.Contains(w.Body.String(), field) {
				t.Errorf("Expected error detail to mention %q: %s", field, w.Body.String())
			}
		}
	})

	t.Run("rejects unknown profile", func(t *testing.T) {
		handler, _ := setupBacktestHandler(t)

		body := `{
			"name": "bad_profile",
			"profile": "reckless",
			"tickers": ["AAPL"],
			"start_date": "2021-01-04",
			"end_date": "2022-12-30"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/backtest", strings.NewReader(body))
		w := httptest.NewRecorder()

		handler.Create(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for unknown profile, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 409 on duplicate name", func(t *testing.T) {
		handler, svc := setupBacktestHandler(t)

		body := `{
			"name": "dup",
			"profile": "balanced",
			"tickers": ["AAPL"],
			"start_date": "2021-01-04",
			"end_date": "2022-12-30"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/backtest", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.Create(w, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("First create failed: %d %s", w.Code, w.Body.String())
		}
		var first CreateRunResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&first)
		svc.WaitForRun(first.RunID)

		req = httptest.NewRequest(http.MethodPost, "/api/backtest", strings.NewReader(body))
		w = httptest.NewRecorder()
		handler.Create(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestBacktestHandler_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := testutil.NewTestBacktestService(t, db)
	handler := NewBacktestHandler(svc, BacktestDefaults{InitialCapital: 10000, RebalanceMonths: 3})

	testutil.NewBacktestRun().WithName("l1").WithProfile("balanced").Done(10, 1.0).Build(t, db)
	testutil.NewBacktestRun().WithName("l2").WithProfile("aggressive").Done(20, 1.5).Build(t, db)

	t.Run("lists all runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/backtest", nil)
		w := httptest.NewRecorder()

		handler.List(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response []RunSummaryResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if len(response) != 2 {
			t.Errorf("Expected 2 runs, got %d", len(response))
		}
	})

	t.Run("filters by profile", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/backtest",
			map[string]string{"profile": "balanced"})
		w := httptest.NewRecorder()

		handler.List(w, req)

		var response []RunSummaryResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if len(response) != 1 || response[0].Name != "l1" {
			t.Errorf("Expected only l1, got %+v", response)
		}
	})

	t.Run("rejects a negative limit", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/backtest",
			map[string]string{"limit": "-1"})
		w := httptest.NewRecorder()

		handler.List(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestBacktestHandler_Get(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := testutil.NewTestBacktestService(t, db)
	handler := NewBacktestHandler(svc, BacktestDefaults{InitialCapital: 10000, RebalanceMonths: 3})

	run := testutil.NewBacktestRun().WithName("g1").Done(15, 1.2).Build(t, db)

	t.Run("returns the run with metrics", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/backtest/"+run.ID,
			map[string]string{"uuid": run.ID})
		w := httptest.NewRecorder()

		handler.Get(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var response RunDetailResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&response)

		if response.ID != run.ID || response.Status != string(model.RunStatusDone) {
			t.Errorf("Unexpected run in response: %+v", response.RunSummaryResponse)
		}
		if response.TotalReturn == nil || *response.TotalReturn != 15 {
			t.Errorf("Expected total return 15, got %v", response.TotalReturn)
		}
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		unknown := "00000000-0000-0000-0000-000000000000"
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/backtest/"+unknown,
			map[string]string{"uuid": unknown})
		w := httptest.NewRecorder()

		handler.Get(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})
}

func TestBacktestHandler_Cancel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := testutil.NewTestBacktestService(t, db)
	handler := NewBacktestHandler(svc, BacktestDefaults{InitialCapital: 10000, RebalanceMonths: 3})

	run := testutil.NewBacktestRun().WithName("c1").Done(15, 1.2).Build(t, db)

	req := testutil.NewRequestWithURLParams(http.MethodDelete, "/api/backtest/"+run.ID,
		map[string]string{"uuid": run.ID})
	w := httptest.NewRecorder()

	handler.Cancel(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a finished run, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBacktestHandler_Profiles(t *testing.T) {
	handler, _ := setupBacktestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/backtest/profiles", nil)
	w := httptest.NewRecorder()

	handler.Profiles(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response []ProfileResponse
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(w.Body).Decode(&response)

	if len(response) != 3 {
		t.Fatalf("Expected 3 built-in profiles, got %d", len(response))
	}
	if response[0].Name != "aggressive" || response[1].Name != "balanced" || response[2].Name != "conservative" {
		t.Errorf("Expected profiles sorted by name, got %+v", response)
	}
}

func TestBacktestHandler_Stats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := testutil.NewTestBacktestService(t, db)
	handler := NewBacktestHandler(svc, BacktestDefaults{InitialCapital: 10000, RebalanceMonths: 3})

	testutil.NewBacktestRun().WithName("s1").WithProfile("balanced").Done(10, 1.0).Build(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/backtest/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response []model.ProfileStats
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(w.Body).Decode(&response)

	if len(response) != 1 || response[0].Profile != "balanced" {
		t.Errorf("Expected one balanced row, got %+v", response)
	}
}
