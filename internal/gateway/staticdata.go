package gateway

import (
	"time"

	"github.com/caremesh/telehealth/internal/shared/types"
)

// Logical endpoint names served by the static mapping.
const (
	EndpointDoctors    = "/api/doctors"
	EndpointHospitals  = "/api/hospitals"
	EndpointTransports = "/api/emergency-transports"
	EndpointAppts      = "/api/appointments"
)

// Deterministic IDs keep the demo dataset stable across process restarts.
func staticID(name string) string {
	return types.NewDeterministicID("static-demo", name).String()
}

// staticCollections is the fixed demo dataset. It is intentionally not a
// queryable store: params passed to FetchData are ignored, and posted data
// never lands here.
var staticCollections = map[string][]map[string]any{
	EndpointDoctors: {
		{
			"id":         staticID("doctor-jane-smith"),
			"name":       "Dr. Jane Smith",
			"specialty":  "General Medicine",
			"bio":        "Board-certified in family and internal medicine.",
			"accepting":  true,
			"rating":     4.8,
		},
		{
			"id":         staticID("doctor-michael-chen"),
			"name":       "Dr. Michael Chen",
			"specialty":  "Cardiology",
			"bio":        "Interventional cardiologist, 15 years of practice.",
			"accepting":  true,
			"rating":     4.9,
		},
		{
			"id":         staticID("doctor-amara-okafor"),
			"name":       "Dr. Amara Okafor",
			"specialty":  "Pediatrics",
			"bio":        "Pediatric care with a focus on preventive medicine.",
			"accepting":  false,
			"rating":     4.7,
		},
	},
	EndpointHospitals: {
		{
			"id":       staticID("hospital-st-marys"),
			"name":     "St. Mary's Medical Center",
			"address":  "450 Stanyan St",
			"city":     "San Francisco",
			"distance": 1.2,
			"lat":      37.7694,
			"lng":      -122.4532,
			"er":       true,
		},
		{
			"id":       staticID("hospital-general"),
			"name":     "City General Hospital",
			"address":  "1001 Potrero Ave",
			"city":     "San Francisco",
			"distance": 2.8,
			"lat":      37.7559,
			"lng":      -122.4048,
			"er":       true,
		},
		{
			"id":       staticID("hospital-pacific"),
			"name":     "Pacific Heights Clinic",
			"address":  "2333 Buchanan St",
			"city":     "San Francisco",
			"distance": 3.5,
			"lat":      37.7911,
			"lng":      -122.4317,
			"er":       false,
		},
	},
	EndpointTransports: {
		{
			"id":          staticID("transport-1"),
			"patientId":   staticID("patient-demo"),
			"pickup":      "800 Market St, San Francisco",
			"destination": "St. Mary's Medical Center",
			"urgency":     "high",
			"status":      "in_progress",
			"requestedAt": "2024-01-15T09:30:00Z",
		},
		{
			"id":          staticID("transport-2"),
			"patientId":   staticID("patient-demo"),
			"pickup":      "2500 Mission St, San Francisco",
			"destination": "City General Hospital",
			"urgency":     "medium",
			"status":      "completed",
			"requestedAt": "2024-01-12T14:05:00Z",
		},
	},
	EndpointAppts: {
		{
			"id":        staticID("appointment-1"),
			"patientId": staticID("patient-demo"),
			"doctorId":  staticID("doctor-jane-smith"),
			"doctor":    "Dr. Jane Smith",
			"date":      "2024-02-01",
			"startTime": "10:00",
			"endTime":   "10:30",
			"status":    "scheduled",
			"reason":    "Annual checkup",
		},
		{
			"id":        staticID("appointment-2"),
			"patientId": staticID("patient-demo"),
			"doctorId":  staticID("doctor-michael-chen"),
			"doctor":    "Dr. Michael Chen",
			"date":      "2024-01-10",
			"startTime": "14:00",
			"endTime":   "14:30",
			"status":    "completed",
			"reason":    "Follow-up consultation",
		},
	},
}

// synthesizeResponse builds the static-mode POST response: a fresh id, the
// echoed payload fields, a default status, and a timestamp. Nothing is
// stored; repeated calls do not accumulate state.
func synthesizeResponse(payload map[string]any) map[string]any {
	response := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		response[k] = v
	}

	response["id"] = types.NewID().String()
	if _, ok := response["status"]; !ok {
		response["status"] = "pending"
	}
	response["createdAt"] = time.Now().UTC().Format(time.RFC3339)

	return response
}
