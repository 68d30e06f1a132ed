package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	BASE_URL     string
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Razorpay Configuration
	RAZORPAY_KEY_ID     string
	RAZORPAY_KEY_SECRET string
	DEFAULT_CURRENCY    string
	ORDER_SECRET_KEY    string
	ORDER_SECRET_SALT   string
	// Mail Configuration
	SMTP_HOST     string
	SMTP_PORT     int
	SMTP_USER     string
	SMTP_PASSWORD string
	SMTP_FROM     string
	ADMIN_EMAIL   string
	// Seller details printed on invoices
	COMPANY_NAME       string
	COMPANY_ADDRESS    string
	COMPANY_PAN_NUMBER string
	COMPANY_STATE      string
	COMPANY_HSN_NUMBER string
	COMPANY_CIN_NUMBER string
	COMPANY_GST_NUMBER string
	COMPANY_EMAIL      string
	COMPANY_HELPLINE   string
	HOME_STATE         string
	// Document numbering
	INVOICE_PREFIX     string
	CANCEL_BILL_PREFIX string
	CERTIFICATE_PREFIX string
	// SMS gateway used for learner OTPs
	SMS_API_URL string
	// Media processing
	MEDIA_ROOT    string
	MP4BOX_PATH   string
	MEDIA_TIMEOUT time.Duration
	// DigitalOcean Spaces Configuration
	SPACES_ACCESS_KEY string
	SPACES_SECRET_KEY string
	SPACES_BUCKET     string
	SPACES_REGION     string
	SPACES_ENDPOINT   string
	SPACES_CDN_URL    string
	// HTTP
	ALLOWED_ORIGINS string
	CRON_ENABLED    bool
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	smtpPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		smtpPort = 587
	}

	mediaTimeout, err := time.ParseDuration(os.Getenv("MEDIA_TIMEOUT"))
	if err != nil || mediaTimeout <= 0 {
		mediaTimeout = 30 * time.Minute
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      getOrDefault("DB_HOST", "localhost"),
		DB_PORT:      getOrDefault("DB_PORT", "5432"),
		DB_SSL_MODE:  getOrDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		BASE_URL:     getOrDefault("BASE_URL", "http://localhost:8080"),
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getOrDefault("JWT_ISSUER", "coursehub-api"),
		// Redis
		REDIS_URL: getOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		// Razorpay
		RAZORPAY_KEY_ID:     os.Getenv("RAZORPAY_KEY_ID"),
		RAZORPAY_KEY_SECRET: os.Getenv("RAZORPAY_KEY_SECRET"),
		DEFAULT_CURRENCY:    getOrDefault("DEFAULT_CURRENCY", "INR"),
		ORDER_SECRET_KEY:    os.Getenv("ORDER_SECRET_KEY"),
		ORDER_SECRET_SALT:   getOrDefault("ORDER_SECRET_SALT", "coursehub-order-secrets"),
		// Mail
		SMTP_HOST:     os.Getenv("SMTP_HOST"),
		SMTP_PORT:     smtpPort,
		SMTP_USER:     os.Getenv("SMTP_USER"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     getOrDefault("SMTP_FROM", os.Getenv("SMTP_USER")),
		ADMIN_EMAIL:   os.Getenv("ADMIN_EMAIL"),
		// Company
		COMPANY_NAME:       os.Getenv("COMPANY_NAME"),
		COMPANY_ADDRESS:    os.Getenv("COMPANY_ADDRESS"),
		COMPANY_PAN_NUMBER: os.Getenv("COMPANY_PAN_NUMBER"),
		COMPANY_STATE:      os.Getenv("COMPANY_STATE"),
		COMPANY_HSN_NUMBER: os.Getenv("COMPANY_HSN_NUMBER"),
		COMPANY_CIN_NUMBER: os.Getenv("COMPANY_CIN_NUMBER"),
		COMPANY_GST_NUMBER: os.Getenv("COMPANY_GST_NUMBER"),
		COMPANY_EMAIL:      os.Getenv("COMPANY_EMAIL"),
		COMPANY_HELPLINE:   os.Getenv("COMPANY_HELPLINE"),
		HOME_STATE:         getOrDefault("HOME_STATE", "Gujarat"),
		// Numbering
		INVOICE_PREFIX:     getOrDefault("INVOICE_PREFIX", "COS"),
		CANCEL_BILL_PREFIX: getOrDefault("CANCEL_BILL_PREFIX", "CNC"),
		CERTIFICATE_PREFIX: getOrDefault("CERTIFICATE_PREFIX", "MGPS"),
		// SMS
		SMS_API_URL: os.Getenv("SMS_API_URL"),
		// Media
		MEDIA_ROOT:    getOrDefault("MEDIA_ROOT", "public"),
		MP4BOX_PATH:   getOrDefault("MP4BOX_PATH", "MP4Box"),
		MEDIA_TIMEOUT: mediaTimeout,
		// Spaces
		SPACES_ACCESS_KEY: os.Getenv("SPACES_ACCESS_KEY"),
		SPACES_SECRET_KEY: os.Getenv("SPACES_SECRET_KEY"),
		SPACES_BUCKET:     os.Getenv("SPACES_BUCKET"),
		SPACES_REGION:     getOrDefault("SPACES_REGION", "blr1"),
		SPACES_ENDPOINT:   os.Getenv("SPACES_ENDPOINT"),
		SPACES_CDN_URL:    os.Getenv("SPACES_CDN_URL"),
		// HTTP
		ALLOWED_ORIGINS: getOrDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		CRON_ENABLED:    os.Getenv("CRON_ENABLED") != "false", // Default to enabled
	}

	return envVariables, nil
}

func getOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
