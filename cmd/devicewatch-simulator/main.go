package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// The simulator registers a fleet of virtual devices against a running
// server and streams telemetry for each of them, so dashboards and alert
// rules can be exercised without physical hardware.

type Config struct {
	ServerURL       string `mapstructure:"server_url"`
	Email           string `mapstructure:"email"`
	Password        string `mapstructure:"password"`
	FullName        string `mapstructure:"full_name"`
	DeviceCount     int    `mapstructure:"device_count"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	Profile         string `mapstructure:"profile"`
}

var config Config

func initConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("simulator")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/devicewatch-simulator")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("simulator")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8000")
	viper.SetDefault("email", "simulator@devicewatch.local")
	viper.SetDefault("password", "simulator-password")
	viper.SetDefault("full_name", "Fleet Simulator")
	viper.SetDefault("device_count", 3)
	viper.SetDefault("interval_seconds", 30)
	viper.SetDefault("profile", "server")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}
	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}
}

func main() {
	initConfig()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &apiClient{
		baseURL: strings.TrimRight(config.ServerURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	if err := client.authenticate(ctx, config.Email, config.FullName, config.Password); err != nil {
		slog.Error("Failed to authenticate", "error", err)
		os.Exit(1)
	}

	devices, err := client.ensureDevices(ctx, config.DeviceCount)
	if err != nil {
		slog.Error("Failed to provision devices", "error", err)
		os.Exit(1)
	}

	profiles := make([]profile, len(devices))
	for i := range devices {
		profiles[i] = newProfile(config.Profile, int64(i))
	}

	slog.Info("Simulator running",
		"server", config.ServerURL,
		"devices", len(devices),
		"profile", config.Profile,
		"interval_seconds", config.IntervalSeconds)

	ticker := time.NewTicker(time.Duration(config.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		for i, device := range devices {
			reading := profiles[i].next()
			if err := client.postHeartbeat(ctx, device.ID, reading); err != nil {
				slog.Warn("Failed to post heartbeat", "device", device.Name, "error", err)
			} else {
				slog.Info("Heartbeat sent",
					"device", device.Name,
					"cpu", fmt.Sprintf("%.1f", reading.CPUUsage),
					"temperature", fmt.Sprintf("%.1f", reading.Temperature))
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("Simulator stopped")
			return
		case <-ticker.C:
		}
	}
}

type apiClient struct {
	baseURL string
	http    *http.Client
	token   string
}

type deviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
}

// authenticate logs in, registering the account first if it does not exist.
func (c *apiClient) authenticate(ctx context.Context, email, fullName, password string) error {
	login := map[string]string{"email": email, "password": password}

	status, body, err := c.post(ctx, "/api/v1/auth/login", login)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		register := map[string]string{"email": email, "full_name": fullName, "password": password}
		if status, _, err = c.post(ctx, "/api/v1/auth/register", register); err != nil {
			return err
		}
		if status != http.StatusCreated && status != http.StatusConflict {
			return fmt.Errorf("register failed with status %d", status)
		}
		if status, body, err = c.post(ctx, "/api/v1/auth/login", login); err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed with status %d", status)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	c.token = resp.AccessToken
	return nil
}

// ensureDevices reuses existing simulator devices and creates the rest.
func (c *apiClient) ensureDevices(ctx context.Context, count int) ([]deviceInfo, error) {
	status, body, err := c.get(ctx, "/api/v1/devices?search=sim-&page_size=100")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list devices failed with status %d", status)
	}

	var listResp struct {
		Devices []deviceInfo `json:"devices"`
	}
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}

	devices := listResp.Devices
	for i := len(devices); i < count; i++ {
		req := map[string]string{
			"name":          fmt.Sprintf("sim-%s-%02d", config.Profile, i+1),
			"location":      "simulator",
			"serial_number": fmt.Sprintf("SIM-%s-%04d", strings.ToUpper(config.Profile), i+1),
			"description":   "Simulated device",
		}
		status, body, err := c.post(ctx, "/api/v1/devices", req)
		if err != nil {
			return nil, err
		}
		if status != http.StatusCreated {
			return nil, fmt.Errorf("create device failed with status %d", status)
		}

		var device deviceInfo
		if err := json.Unmarshal(body, &device); err != nil {
			return nil, fmt.Errorf("decode device: %w", err)
		}
		devices = append(devices, device)
	}

	if len(devices) > count {
		devices = devices[:count]
	}
	return devices, nil
}

func (c *apiClient) postHeartbeat(ctx context.Context, deviceID string, r reading) error {
	payload := map[string]any{
		"device_id":       deviceID,
		"cpu_usage":       r.CPUUsage,
		"ram_usage":       r.RAMUsage,
		"temperature":     r.Temperature,
		"free_disk_space": r.FreeDiskSpace,
		"dns_latency":     r.DNSLatency,
		"connectivity":    r.Connectivity,
		"boot_timestamp":  r.BootTimestamp.UTC().Format(time.RFC3339),
	}

	status, _, err := c.post(ctx, "/api/v1/heartbeats", payload)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("heartbeat rejected with status %d", status)
	}
	return nil
}

func (c *apiClient) post(ctx context.Context, path string, body any) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *apiClient) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	return c.do(req)
}

func (c *apiClient) do(req *http.Request) (int, []byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}
