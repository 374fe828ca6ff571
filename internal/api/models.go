package api

// Admin login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type LoginResponse struct {
	Token string `json:"token"`
}

// Facility administration
type UpdateCapacityRequest struct {
	TotalSpaces int `json:"total_spaces"`
}

type GenerateLayoutRequest struct {
	Levels      int    `json:"levels"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	VehicleType string `json:"vehicle_type"`
}

type SetSlotStatusRequest struct {
	Status string `json:"status"`
}
