package dto

import (
	"time"

	"github.com/devicewatch/devicewatch/internal/store"
)

type CreateDeviceRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=255"`
	Location     string `json:"location" binding:"required,min=1,max=255"`
	SerialNumber string `json:"serial_number" binding:"required,min=1,max=255"`
	Description  string `json:"description" binding:"max=1000"`
}

type UpdateDeviceRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Location    string `json:"location" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=1000"`
}

type BulkDeleteDevicesRequest struct {
	DeviceIDs []string `json:"device_ids" binding:"required,min=1,max=100"`
}

type BulkDeleteDevicesResponse struct {
	Deleted int64 `json:"deleted"`
}

type DeviceResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	SerialNumber string `json:"serial_number"`
	Description  string `json:"description"`
	IsOnline     bool   `json:"is_online"`
	LastSeen     string `json:"last_seen,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ListDevicesResponse struct {
	Devices  []DeviceResponse `json:"devices"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func NewDeviceResponse(d store.Device, now time.Time) DeviceResponse {
	resp := DeviceResponse{
		ID:           d.ID,
		Name:         d.Name,
		Location:     d.Location,
		SerialNumber: d.SerialNumber,
		Description:  d.Description,
		IsOnline:     d.IsOnline(now),
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if d.LastSeen != nil {
		resp.LastSeen = d.LastSeen.UTC().Format(time.RFC3339)
	}
	return resp
}
