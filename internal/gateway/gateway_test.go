package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestStaticFetchDoctors tests the fixed doctor directory
func TestStaticFetchDoctors(t *testing.T) {
	client := NewClient(Config{Mode: ModeStatic})

	data, err := client.FetchData(context.Background(), EndpointDoctors, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	doctors, ok := data.([]map[string]any)
	if !ok {
		t.Fatalf("Expected []map[string]any, got %T", data)
	}

	if len(doctors) != 3 {
		t.Fatalf("Expected 3 doctors, got %d", len(doctors))
	}

	found := false
	for _, d := range doctors {
		if d["name"] == "Dr. Jane Smith" && d["specialty"] == "General Medicine" {
			found = true
		}
	}
	if !found {
		t.Error("Expected directory to include Dr. Jane Smith, General Medicine")
	}
}

// TestStaticFetchIgnoresParams tests that static mode serves the fixed
// dataset regardless of filter params
func TestStaticFetchIgnoresParams(t *testing.T) {
	client := NewClient(Config{Mode: ModeStatic})

	filtered, err := client.FetchData(context.Background(), EndpointDoctors, map[string]string{
		"specialty": "Neurosurgery",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	unfiltered, _ := client.FetchData(context.Background(), EndpointDoctors, nil)

	if len(filtered.([]map[string]any)) != len(unfiltered.([]map[string]any)) {
		t.Error("Expected params to be ignored in static mode")
	}
}

// TestStaticUnknownEndpoint tests that unmapped endpoints degrade to an
// empty collection instead of failing
func TestStaticUnknownEndpoint(t *testing.T) {
	client := NewClient(Config{Mode: ModeStatic})

	data, err := client.FetchData(context.Background(), "/api/prescriptions", nil)
	if err != nil {
		t.Fatalf("Expected no error for unknown endpoint, got: %v", err)
	}

	collection, ok := data.([]map[string]any)
	if !ok {
		t.Fatalf("Expected []map[string]any, got %T", data)
	}

	if len(collection) != 0 {
		t.Errorf("Expected empty collection, got %d entries", len(collection))
	}
}

// TestStaticPostSynthesizesResponse tests the synthesized POST response
func TestStaticPostSynthesizesResponse(t *testing.T) {
	client := NewClient(Config{Mode: ModeStatic})

	payload := map[string]any{
		"doctorId": "d1",
		"date":     "2024-03-01",
		"reason":   "Consultation",
	}

	result, err := client.PostData(context.Background(), EndpointAppts, payload)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result["id"] == nil || result["id"] == "" {
		t.Error("Expected a generated id")
	}

	if result["status"] != "pending" {
		t.Errorf("Expected default status pending, got %v", result["status"])
	}

	if result["createdAt"] == nil {
		t.Error("Expected a timestamp")
	}

	for k, v := range payload {
		if result[k] != v {
			t.Errorf("Expected payload field %s to be echoed, got %v", k, result[k])
		}
	}
}

// TestStaticPostDoesNotPersist tests that posted data never reaches the
// static collections
func TestStaticPostDoesNotPersist(t *testing.T) {
	client := NewClient(Config{Mode: ModeStatic})

	before, _ := client.FetchData(context.Background(), EndpointAppts, nil)
	beforeCount := len(before.([]map[string]any))

	_, err := client.PostData(context.Background(), EndpointAppts, map[string]any{
		"doctorId": "d1",
		"date":     "2024-03-01",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	after, _ := client.FetchData(context.Background(), EndpointAppts, nil)
	afterCount := len(after.([]map[string]any))

	if afterCount != beforeCount {
		t.Errorf("Expected collection size to stay %d, got %d", beforeCount, afterCount)
	}
}

// TestLiveFetchSuccess tests the live GET path with query params and the
// bearer token header
func TestLiveFetchSuccess(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{{"id": "a1"}})
	}))
	defer server.Close()

	client := NewClient(Config{
		Mode:        ModeLive,
		BaseURL:     server.URL,
		TokenSource: func() string { return "test-token" },
	})

	data, err := client.FetchData(context.Background(), "/api/appointments", map[string]string{
		"doctorId": "5",
		"date":     "2024-01-01",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Expected bearer token header, got %q", gotAuth)
	}

	if gotQuery != "date=2024-01-01&doctorId=5" {
		t.Errorf("Unexpected query string: %q", gotQuery)
	}

	collection, ok := data.([]any)
	if !ok || len(collection) != 1 {
		t.Errorf("Expected 1-entry collection, got %v", data)
	}
}

// TestLiveFetchServerError tests that a server-supplied error message is
// surfaced verbatim
func TestLiveFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer server.Close()

	client := NewClient(Config{Mode: ModeLive, BaseURL: server.URL})

	_, err := client.FetchData(context.Background(), "/api/appointments", map[string]string{
		"doctorId": "5",
		"date":     "2024-01-01",
	})

	reqErr, ok := err.(*RequestError)
	if !ok {
		t.Fatalf("Expected *RequestError, got %T", err)
	}

	if reqErr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", reqErr.Status)
	}

	if reqErr.Message != "not found" {
		t.Errorf("Expected message 'not found', got %q", reqErr.Message)
	}
}

// TestLiveFetchGenericError tests the fallback message when the server
// provides no error body
func TestLiveFetchGenericError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{Mode: ModeLive, BaseURL: server.URL})

	_, err := client.FetchData(context.Background(), "/api/doctors", nil)
	reqErr, ok := err.(*RequestError)
	if !ok {
		t.Fatalf("Expected *RequestError, got %T", err)
	}

	if reqErr.Message != "server returned status 500" {
		t.Errorf("Expected generic message, got %q", reqErr.Message)
	}
}

// TestLiveNetworkFailure tests that a connection failure surfaces as a
// RequestError with status 0
func TestLiveNetworkFailure(t *testing.T) {
	// Closed server to force a connection error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{Mode: ModeLive, BaseURL: server.URL})

	_, err := client.FetchData(context.Background(), "/api/doctors", nil)
	reqErr, ok := err.(*RequestError)
	if !ok {
		t.Fatalf("Expected *RequestError, got %T", err)
	}

	if reqErr.Status != 0 {
		t.Errorf("Expected status 0 for network failure, got %d", reqErr.Status)
	}
}

// TestLivePost tests the live POST path
func TestLivePost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		body["id"] = "created-1"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client := NewClient(Config{Mode: ModeLive, BaseURL: server.URL})

	result, err := client.PostData(context.Background(), "/api/appointments", map[string]any{
		"doctorId": "d1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result["id"] != "created-1" {
		t.Errorf("Expected created id, got %v", result["id"])
	}

	if result["doctorId"] != "d1" {
		t.Errorf("Expected payload echoed by server, got %v", result["doctorId"])
	}
}
