package fleet

import "time"

type Kind string

const (
	KindDrone Kind = "DRONE"
	KindTruck Kind = "TRUCK"
)

type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "AVAILABLE"
	StatusBusy        VehicleStatus = "BUSY"
	StatusMaintenance VehicleStatus = "MAINTENANCE"
)

type Vehicle struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Name       string        `json:"name"`
	Model      string        `json:"model,omitempty"`
	CapacityKg int           `json:"capacity_kg"`
	Status     VehicleStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Assignment ties one order to the vehicle delivering it.
type Assignment struct {
	OrderID    string    `json:"order_id"`
	VehicleID  string    `json:"vehicle_id"`
	Kind       Kind      `json:"vehicle_kind"`
	AssignedAt time.Time `json:"assigned_at"`
}

// PreferredKind picks a drone for small orders and a truck for bulk ones.
// droneMaxUnits is the total unit count a drone run is allowed to carry.
func PreferredKind(totalUnits, droneMaxUnits int) Kind {
	if droneMaxUnits > 0 && totalUnits <= droneMaxUnits {
		return KindDrone
	}
	return KindTruck
}

func OtherKind(k Kind) Kind {
	if k == KindDrone {
		return KindTruck
	}
	return KindDrone
}
