package trip

import (
	"time"

	"github.com/movaride/negotiation/internal/docstore"
)

// Document encodes the request's creation-time payload for the store.
// Mutable protocol fields are written by engine patches, never here.
func (t *TripRequest) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"pickupLocation":      encodeLocation(t.PickupLocation),
		"destinationLocation": encodeLocation(t.DestinationLocation),
		"transportationMode":  string(t.TransportationMode),
		"clientId":            t.ClientID,
		"status":              string(t.Status),
		"offer":               t.Offer,
		"declinedOffers":      []interface{}{},
	}
	if t.Message != "" {
		doc["message"] = t.Message
	}
	return doc
}

// FromSnapshot decodes a store snapshot into a TripRequest.
func FromSnapshot(snap *docstore.Snapshot) *TripRequest {
	d := snap.Data
	t := &TripRequest{
		ID:                  snap.ID,
		PickupLocation:      decodeLocation(d["pickupLocation"]),
		DestinationLocation: decodeLocation(d["destinationLocation"]),
		TransportationMode:  TransportationMode(asString(d["transportationMode"])),
		ClientID:            asString(d["clientId"]),
		Status:              Status(asString(d["status"])),
		Offer:               asFloat(d["offer"]),
		Source:              Source(asString(d["source"])),
		DeclinedBy:          Source(asString(d["declinedBy"])),
		DriverID:            asString(d["driverId"]),
		Message:             asString(d["message"]),
		Distance:            asString(d["distance"]),
		Duration:            asString(d["duration"]),
		Version:             snap.Version,
	}

	if v, ok := asFloatOK(d["counterOffer"]); ok {
		t.CounterOffer = &v
	}
	if v, ok := asFloatOK(d["finalOffer"]); ok {
		t.FinalOffer = &v
	}
	if ts, ok := asTimeOK(d["retryAllowedAt"]); ok {
		t.RetryAllowedAt = &ts
	}
	if ts, ok := asTimeOK(d["finalizedAt"]); ok {
		t.FinalizedAt = &ts
	}
	if ts, ok := asTimeOK(d["createdAt"]); ok {
		t.CreatedAt = ts
	}
	if ts, ok := asTimeOK(d["updatedAt"]); ok {
		t.UpdatedAt = ts
	}

	if raw, ok := d["declinedOffers"].([]interface{}); ok {
		for _, v := range raw {
			if id := asString(v); id != "" {
				t.DeclinedOffers = append(t.DeclinedOffers, id)
			}
		}
	}
	if raw, ok := d["driverDetails"].(map[string]interface{}); ok {
		t.DriverDetails = &DriverDetails{
			Name:               asString(raw["name"]),
			Avatar:             asString(raw["avatar"]),
			VehicleType:        asString(raw["vehicleType"]),
			VehiclePlateNumber: asString(raw["vehiclePlateNumber"]),
			ETA:                asString(raw["eta"]),
		}
	}
	if raw, ok := d["clientDetails"].(map[string]interface{}); ok {
		t.ClientDetails = &ClientDetails{
			Name:        asString(raw["name"]),
			Avatar:      asString(raw["avatar"]),
			PhoneNumber: asString(raw["phoneNumber"]),
			ClientID:    asString(raw["clientId"]),
		}
	}

	return t
}

func encodeLocation(l Location) map[string]interface{} {
	return map[string]interface{}{
		"lat":              l.Lat,
		"lng":              l.Lng,
		"formattedAddress": l.FormattedAddress,
	}
}

func decodeLocation(v interface{}) Location {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return Location{}
	}
	return Location{
		Lat:              asFloat(raw["lat"]),
		Lng:              asFloat(raw["lng"]),
		FormattedAddress: asString(raw["formattedAddress"]),
	}
}

func encodeDriverDetails(d DriverDetails) map[string]interface{} {
	return map[string]interface{}{
		"name":               d.Name,
		"avatar":             d.Avatar,
		"vehicleType":        d.VehicleType,
		"vehiclePlateNumber": d.VehiclePlateNumber,
		"eta":                d.ETA,
	}
}

func encodeClientDetails(c ClientDetails) map[string]interface{} {
	return map[string]interface{}{
		"name":        c.Name,
		"avatar":      c.Avatar,
		"phoneNumber": c.PhoneNumber,
		"clientId":    c.ClientID,
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	f, _ := asFloatOK(v)
	return f
}

// asFloatOK normalizes the numeric encodings the store backends produce.
func asFloatOK(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asTimeOK(v interface{}) (time.Time, bool) {
	ts, ok := v.(time.Time)
	return ts, ok
}
