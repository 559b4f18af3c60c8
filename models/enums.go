package models

type DayStatus string

const (
	DayStatusOpen   DayStatus = "Open"
	DayStatusClosed DayStatus = "Closed"
)

type EventKind string

const (
	EventKindOpeningSnapshot EventKind = "OpeningSnapshot"
	EventKindClosingSnapshot EventKind = "ClosingSnapshot"
	EventKindDelivery        EventKind = "Delivery"
	EventKindTransfer        EventKind = "Transfer"
	EventKindSpoilage        EventKind = "Spoilage"
	EventKindAdjustment      EventKind = "Adjustment"
)

// Location is one of the outlet's two stock locations.
type Location string

const (
	LocationStorage Location = "storage"
	LocationKitchen Location = "kitchen"
)

var AllLocations = []Location{LocationStorage, LocationKitchen}

func (l Location) Valid() bool {
	return l == LocationStorage || l == LocationKitchen
}

type UnitType string

const (
	UnitTypeWeight UnitType = "weight"
	UnitTypeVolume UnitType = "volume"
	UnitTypeCount  UnitType = "count"
)

func (t UnitType) Valid() bool {
	switch t {
	case UnitTypeWeight, UnitTypeVolume, UnitTypeCount:
		return true
	}
	return false
}

type SpoilageReason string

const (
	SpoilageReasonExpired SpoilageReason = "expired"
	SpoilageReasonDamaged SpoilageReason = "damaged"
	SpoilageReasonSpilled SpoilageReason = "spilled"
	SpoilageReasonOther   SpoilageReason = "other"
)

func (r SpoilageReason) Valid() bool {
	switch r {
	case SpoilageReasonExpired, SpoilageReasonDamaged, SpoilageReasonSpilled, SpoilageReasonOther:
		return true
	}
	return false
}

type AlertLevel string

const (
	AlertLevelOK       AlertLevel = "OK"
	AlertLevelWarning  AlertLevel = "Warning"
	AlertLevelCritical AlertLevel = "Critical"
)

type ExpiryLevel string

const (
	ExpiryLevelNone     ExpiryLevel = "None"
	ExpiryLevelWarning  ExpiryLevel = "Warning"
	ExpiryLevelCritical ExpiryLevel = "Critical"
	ExpiryLevelExpired  ExpiryLevel = "Expired"
)
