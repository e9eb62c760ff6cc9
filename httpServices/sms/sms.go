package sms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Client talks to the campus SMS gateway
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new SMS gateway client
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendOTP delivers a verification code to the given phone number
func (c *Client) SendOTP(phone, code string) error {
	if c.baseURL == "" {
		return errors.New("SMS_GATEWAY_URL is not set")
	}

	body, err := json.Marshal(sendRequest{
		Phone:   phone,
		Message: fmt.Sprintf("Your campus device verification code is %s. It expires in 5 minutes.", code),
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+"/sms/send/", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey := os.Getenv("SMS_GATEWAY_API_KEY"); apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("SMS gateway returned non-OK status: " + resp.Status)
	}
	return nil
}
