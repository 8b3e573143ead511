package dto

import (
	"time"

	"github.com/devicewatch/devicewatch/internal/health"
	"github.com/devicewatch/devicewatch/internal/store"
)

type CreateHeartbeatRequest struct {
	DeviceID      string    `json:"device_id" binding:"required,uuid"`
	CPUUsage      *float64  `json:"cpu_usage" binding:"required,gte=0,lte=100"`
	RAMUsage      *float64  `json:"ram_usage" binding:"required,gte=0,lte=100"`
	Temperature   *float64  `json:"temperature" binding:"required,gte=-50,lte=150"`
	FreeDiskSpace *float64  `json:"free_disk_space" binding:"required,gte=0,lte=100"`
	DNSLatency    *float64  `json:"dns_latency" binding:"required,gte=0,lte=10000"`
	Connectivity  *bool     `json:"connectivity" binding:"required"`
	BootTimestamp time.Time `json:"boot_timestamp" binding:"required"`
}

type HeartbeatResponse struct {
	ID            string  `json:"id"`
	DeviceID      string  `json:"device_id"`
	CPUUsage      float64 `json:"cpu_usage"`
	RAMUsage      float64 `json:"ram_usage"`
	Temperature   float64 `json:"temperature"`
	FreeDiskSpace float64 `json:"free_disk_space"`
	DNSLatency    float64 `json:"dns_latency"`
	Connectivity  bool    `json:"connectivity"`
	BootTimestamp string  `json:"boot_timestamp"`
	HealthScore   float64 `json:"health_score"`
	HealthStatus  string  `json:"health_status"`
	Timestamp     string  `json:"timestamp"`
}

type ListHeartbeatsResponse struct {
	Heartbeats []HeartbeatResponse `json:"heartbeats"`
	Count      int                 `json:"count"`
}

type HealthScoreResponse struct {
	DeviceID    string   `json:"device_id"`
	Current     *float64 `json:"current_score"`
	Average     *float64 `json:"average_score"`
	Min         *float64 `json:"min_score"`
	Max         *float64 `json:"max_score"`
	Status      string   `json:"status"`
	SampleCount int      `json:"sample_count"`
	WindowHours int      `json:"window_hours"`
}

func NewHeartbeatResponse(hb store.Heartbeat) HeartbeatResponse {
	return HeartbeatResponse{
		ID:            hb.ID,
		DeviceID:      hb.DeviceID,
		CPUUsage:      hb.CPUUsage,
		RAMUsage:      hb.RAMUsage,
		Temperature:   hb.Temperature,
		FreeDiskSpace: hb.FreeDiskSpace,
		DNSLatency:    hb.DNSLatency,
		Connectivity:  hb.Connectivity,
		BootTimestamp: hb.BootTimestamp.UTC().Format(time.RFC3339),
		HealthScore:   hb.HealthScore,
		HealthStatus:  health.StatusFor(hb.HealthScore),
		Timestamp:     hb.Timestamp.UTC().Format(time.RFC3339),
	}
}
