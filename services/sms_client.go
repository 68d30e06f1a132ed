package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

var ErrSMSFailed = errors.New("sms delivery failed")

// SMSClient delivers OTPs through the SMS gateway's HTTP API
type SMSClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSMSClient creates a new SMS client. An empty baseURL logs codes instead
// of sending them.
func NewSMSClient(baseURL string) *SMSClient {
	return &SMSClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	PhoneNumber string            `json:"phoneNumber"`
	ProjectName string            `json:"project_name"`
	MessageType string            `json:"message_type"`
	Variable    map[string]string `json:"variable"`
}

type smsResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// SendOTP posts the code to /send-sms
func (c *SMSClient) SendOTP(ctx context.Context, phone, code string) error {
	if c.baseURL == "" {
		log.Printf("[OTP] SMS gateway not configured, code for %s not sent", maskPhone(phone))
		return nil
	}

	body, err := json.Marshal(smsRequest{
		PhoneNumber: phone,
		ProjectName: "course",
		MessageType: "send_opt",
		Variable:    map[string]string{"#var1": code},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-sms", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSMSFailed, err)
	}
	defer resp.Body.Close()

	var out smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSMSFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || (out.Status != 0 && out.Status != http.StatusOK) {
		return fmt.Errorf("%w: status %d %s", ErrSMSFailed, resp.StatusCode, out.Message)
	}
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
