// Package permit defines the parking-permit record exchanged between the
// remote source, the local store, and the embedded display.
package permit

import "encoding/json"

// Permit is one parking-permit grant. Field names match the JSON schema
// served by the remote source and read by the display firmware.
type Permit struct {
	PermitNumber string `json:"permitNumber"`
	PlateNumber  string `json:"plateNumber"`
	VehicleName  string `json:"vehicleName"`
	ValidFrom    string `json:"validFrom"`
	ValidTo      string `json:"validTo"`
	BarcodeValue string `json:"barcodeValue"`
	BarcodeLabel string `json:"barcodeLabel"`
	Price        string `json:"amountPaid"`

	// DisplayFlipped is an orientation hint carried in the payload sent to
	// the display. It is not part of the permit itself.
	DisplayFlipped bool `json:"displayFlipped"`
}

// IsValid reports whether the record identifies a permit at all.
func (p *Permit) IsValid() bool {
	return p != nil && p.PermitNumber != ""
}

// IsComplete reports whether every field the display needs is present.
// A permit must be complete before it is trusted for a BLE transfer.
func (p *Permit) IsComplete() bool {
	return p != nil &&
		p.PermitNumber != "" &&
		p.PlateNumber != "" &&
		p.ValidFrom != "" &&
		p.ValidTo != "" &&
		p.BarcodeValue != "" &&
		p.BarcodeLabel != ""
}

// FromJSON parses a permit record. A nil error does not imply validity;
// callers check IsValid separately.
func FromJSON(data []byte) (*Permit, error) {
	var p Permit
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ToJSON serializes the permit, including the displayFlipped hint.
func (p *Permit) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
