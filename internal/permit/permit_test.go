package permit

import "testing"

func completePermit() *Permit {
	return &Permit{
		PermitNumber: "P-1001",
		PlateNumber:  "ABC123",
		VehicleName:  "Hooptie",
		ValidFrom:    "Dec 30, 2025: 00:00",
		ValidTo:      "Jan 05, 2026: 23:59",
		BarcodeValue: "123456789",
		BarcodeLabel: "1001",
		Price:        "$25.00",
	}
}

func TestIsValid(t *testing.T) {
	p := completePermit()
	if !p.IsValid() {
		t.Error("IsValid() = false for permit with number")
	}

	p.PermitNumber = ""
	if p.IsValid() {
		t.Error("IsValid() = true for permit without number")
	}

	var nilPermit *Permit
	if nilPermit.IsValid() {
		t.Error("IsValid() = true for nil permit")
	}
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Permit)
		want   bool
	}{
		{"all fields", func(p *Permit) {}, true},
		{"no vehicle name still complete", func(p *Permit) { p.VehicleName = "" }, true},
		{"no price still complete", func(p *Permit) { p.Price = "" }, true},
		{"missing plate", func(p *Permit) { p.PlateNumber = "" }, false},
		{"missing validFrom", func(p *Permit) { p.ValidFrom = "" }, false},
		{"missing validTo", func(p *Permit) { p.ValidTo = "" }, false},
		{"missing barcode value", func(p *Permit) { p.BarcodeValue = "" }, false},
		{"missing barcode label", func(p *Permit) { p.BarcodeLabel = "" }, false},
		{"missing number", func(p *Permit) { p.PermitNumber = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := completePermit()
			tt.mutate(p)
			if got := p.IsComplete(); got != tt.want {
				t.Errorf("IsComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromJSONFieldNames(t *testing.T) {
	data := []byte(`{
		"permitNumber": "P-2002",
		"plateNumber": "XYZ789",
		"vehicleName": "Van",
		"validFrom": "Dec 30, 2025: 00:00",
		"validTo": "Jan 05, 2026: 23:59",
		"barcodeValue": "987654",
		"barcodeLabel": "2002",
		"amountPaid": "$30.00",
		"displayFlipped": true
	}`)

	p, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if p.PermitNumber != "P-2002" {
		t.Errorf("PermitNumber = %q, want P-2002", p.PermitNumber)
	}
	if p.Price != "$30.00" {
		t.Errorf("Price = %q, want $30.00 (amountPaid field)", p.Price)
	}
	if !p.DisplayFlipped {
		t.Error("DisplayFlipped = false, want true")
	}
	if !p.IsComplete() {
		t.Error("parsed permit should be complete")
	}
}

func TestFromJSONMalformed(t *testing.T) {
	if _, err := FromJSON([]byte("not json")); err == nil {
		t.Error("FromJSON() on garbage should error")
	}
}
