package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ApiClient talks to the barrobot HTTP API.
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewApiClient reads the server address from BARROBOT_API_URL.
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("BARROBOT_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}

	return &ApiClient{
		// a real pour holds the request open for the whole dispense
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		BaseURL:    baseURL,
	}
}

// CheckHealth checks if the API is up and running
func (c *ApiClient) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API health check failed with status code: %d", resp.StatusCode)
	}

	return true, nil
}

type Ingredient struct {
	Item  string  `json:"item"`
	QtyOz float64 `json:"qty_oz"`
}

type Recipe struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Instructions string       `json:"instructions"`
	Ingredients  []Ingredient `json:"ingredients"`
}

type Suggestion struct {
	Recipe  Recipe   `json:"recipe"`
	Missing []string `json:"missing"`
}

// Event is one step of a dispense as reported by the server.
type Event struct {
	Kind    string  `json:"kind"`
	Item    string  `json:"item,omitempty"`
	QtyOz   float64 `json:"qty_oz,omitempty"`
	Slot    *int    `json:"slot,omitempty"`
	Presses int     `json:"presses,omitempty"`
	Message string  `json:"message"`
	Error   string  `json:"error,omitempty"`
}

type Run struct {
	ID       string  `json:"run_id"`
	Recipe   string  `json:"recipe"`
	Status   string  `json:"status"`
	SafeMode bool    `json:"safe_mode"`
	Events   []Event `json:"events"`
}

type TurretStatus struct {
	Slot      int  `json:"slot"`
	SafeMode  bool `json:"safe_mode"`
	GPIOReady bool `json:"gpio_ready"`
	Faulted   bool `json:"faulted"`
}

type Status struct {
	Turret TurretStatus           `json:"turret"`
	Busy   bool                   `json:"busy"`
	Board  map[string]interface{} `json:"board"`
}

// GetMenu returns the drinks that can be made with the loaded bottles.
func (c *ApiClient) GetMenu() ([]Recipe, error) {
	var menu []Recipe
	return menu, c.do(http.MethodGet, "/api/v1/menu", &menu)
}

// GetSuggestions returns drinks that are one bottle short.
func (c *ApiClient) GetSuggestions() ([]Suggestion, error) {
	var out []Suggestion
	return out, c.do(http.MethodGet, "/api/v1/suggestions?mode=one", &out)
}

func (c *ApiClient) GetStatus() (*Status, error) {
	var st Status
	if err := c.do(http.MethodGet, "/api/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// MakeDrink pours a drink and blocks until the run ends. A run that ended
// in a hardware fault is returned together with an error.
func (c *ApiClient) MakeDrink(id string) (*Run, error) {
	var run Run
	err := c.do(http.MethodPost, "/api/v1/drinks/"+id+"/make", &run)
	if run.ID != "" {
		return &run, err
	}
	return nil, err
}

func (c *ApiClient) do(method, path string, out interface{}) error {
	req, err := http.NewRequest(method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		// fault runs carry the run itself, not an error body
		json.Unmarshal(body, out)
		return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	return json.Unmarshal(body, out)
}
