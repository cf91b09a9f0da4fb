package validator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(url, 5*time.Second, 2*time.Second)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !newTestClient(srv.URL).Health(context.Background()) {
		t.Error("expected healthy")
	}
}

func TestHealth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if newTestClient(srv.URL).Health(context.Background()) {
		t.Error("expected unhealthy for closed server")
	}
}

func TestHealth_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if newTestClient(srv.URL).Health(context.Background()) {
		t.Error("expected unhealthy for 503")
	}
}

func TestValidateRecommendation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/validate/recommendation" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ValidationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Result{
			IsValid:          false,
			ConfidenceScore:  0.42,
			ValidationTier:   TierBlocked,
			AlertLevel:       AlertCritical,
			DeviationFactors: []string{"drug interaction with warfarin"},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).ValidateRecommendation(context.Background(), ValidationRequest{
		Recommendation: Recommendation{Type: RecommendationTypeMedication, Text: "start aspirin"},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.AlertLevel != AlertCritical || res.ValidationTier != TierBlocked {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestValidateRecommendation_UnknownAlertLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"alertLevel":     "PANIC",
			"validationTier": "HIGH_CONFIDENCE",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ValidateRecommendation(context.Background(), ValidationRequest{})
	if err == nil {
		t.Fatal("expected error for unknown alert level")
	}
}

func TestValidateBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/validate/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Result{
			{AlertLevel: AlertNone, ValidationTier: TierHighConfidence, IsValid: true},
			{AlertLevel: "BOGUS", ValidationTier: TierHighConfidence},
			{AlertLevel: AlertHigh, ValidationTier: TierNeedsReview, IsAnomaly: true, AnomalyScore: 0.91},
		})
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL).ValidateBatch(context.Background(), make([]ValidationRequest, 3))
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Err != nil || !items[0].Result.CleanPass() {
		t.Errorf("item 0 should be a clean pass, got %+v", items[0])
	}
	if items[1].Err == nil {
		t.Error("item 1 should carry a per-item error")
	}
	if items[2].Err != nil || !items[2].Result.IsAnomaly {
		t.Errorf("item 2 should be an anomaly, got %+v", items[2])
	}
}

func TestValidateBatch_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Result{})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).ValidateBatch(context.Background(), make([]ValidationRequest, 2)); err == nil {
		t.Error("expected error for result count mismatch")
	}
}
