package router

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/template/html/v2"
	"github.com/sahilchouksey/coursehub-api/config"
	"github.com/sahilchouksey/coursehub-api/database"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/services/cron"
	"github.com/sahilchouksey/coursehub-api/services/razorpay"
	"github.com/sahilchouksey/coursehub-api/services/storage"
	"github.com/sahilchouksey/coursehub-api/utils/auth"
	"github.com/sahilchouksey/coursehub-api/utils/cache"
	"github.com/sahilchouksey/coursehub-api/utils/crypto"
	"gorm.io/gorm"
)

// Services holds the long-lived dependencies shared by the routes and the cron jobs
type Services struct {
	DB    *gorm.DB
	Cache *cache.RedisCache // nil when Redis is unreachable
	Views *html.Engine
	Files storage.Store

	JWT       *auth.JWTManager
	Blacklist *auth.BlacklistService

	Users        *repository.UserRepository
	Payments     *repository.PaymentRepository
	Challenges   *repository.OTPRepository
	Certificates *repository.CertificateRepository

	Catalog     *services.CatalogService
	Media       *services.MediaService
	Invoices    *services.InvoiceService
	OTP         *services.OTPService
	Fulfillment *services.FulfillmentService
	Checkout    *services.PaymentService
	Refunds     *services.RefundService
	Progress    *services.ProgressService
	Issuer      *services.CertificateService
}

// NewServices wires repositories, gateways and domain services from the environment
func NewServices(store database.Storage, env *config.EnviornmentVariable, views *html.Engine) (*Services, error) {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return nil, fmt.Errorf("failed to get GORM DB instance")
	}

	if env.JWT_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        env.JWT_ISSUER,
	})

	redisCache, err := cache.NewRedisCache(env.REDIS_URL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Caching, OTP throttling and brute force protection will be disabled.", err)
		redisCache = nil
	}

	files, err := newFileStore(env)
	if err != nil {
		return nil, err
	}

	sealer, err := crypto.NewSecretBox(env.ORDER_SECRET_KEY, env.ORDER_SECRET_SALT)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize order secret encryption: %w", err)
	}

	company := services.CompanyInfo{
		Name:     env.COMPANY_NAME,
		Address:  env.COMPANY_ADDRESS,
		PAN:      env.COMPANY_PAN_NUMBER,
		State:    env.COMPANY_STATE,
		HSN:      env.COMPANY_HSN_NUMBER,
		CIN:      env.COMPANY_CIN_NUMBER,
		GST:      env.COMPANY_GST_NUMBER,
		Email:    env.COMPANY_EMAIL,
		Helpline: env.COMPANY_HELPLINE,
	}

	mailer := services.NewEmailService(services.EmailConfig{
		Host:       env.SMTP_HOST,
		Port:       env.SMTP_PORT,
		Username:   env.SMTP_USER,
		Password:   env.SMTP_PASSWORD,
		From:       env.SMTP_FROM,
		AdminEmail: env.ADMIN_EMAIL,
	}, views)

	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:     env.RAZORPAY_KEY_ID,
		KeySecret: env.RAZORPAY_KEY_SECRET,
	})

	paymentRepo := repository.NewPaymentRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	certRepo := repository.NewCertificateRepository(db)

	// interfaces stay nil rather than holding a nil *RedisCache
	var catalogCache services.CatalogCache
	var throttle services.Throttle
	if redisCache != nil {
		catalogCache = redisCache
		throttle = redisCache
	}

	invoices := services.NewInvoiceService(company, os.TempDir())
	fulfillment := services.NewFulfillmentService(
		repository.NewFulfillmentRepository(db), mailer, invoices, files, company, env.ADMIN_EMAIL,
	)

	return &Services{
		DB:        db,
		Cache:     redisCache,
		Views:     views,
		Files:     files,
		JWT:       jwtManager,
		Blacklist: auth.NewBlacklistService(db),

		Users:        repository.NewUserRepository(db),
		Payments:     paymentRepo,
		Challenges:   otpRepo,
		Certificates: certRepo,

		Catalog: services.NewCatalogService(db, catalogCache),
		Media: services.NewMediaService(services.MediaConfig{
			Root:       env.MEDIA_ROOT,
			MP4BoxPath: env.MP4BOX_PATH,
			Timeout:    env.MEDIA_TIMEOUT,
		}, files),
		Invoices:    invoices,
		OTP:         services.NewOTPService(otpRepo, services.NewSMSClient(env.SMS_API_URL), mailer, throttle),
		Fulfillment: fulfillment,
		Checkout: services.NewPaymentService(paymentRepo, gateway, sealer, fulfillment, services.PaymentConfig{
			Currency:      env.DEFAULT_CURRENCY,
			HomeState:     env.HOME_STATE,
			InvoicePrefix: env.INVOICE_PREFIX,
		}),
		Refunds:  services.NewRefundService(paymentRepo, gateway, fulfillment, env.CANCEL_BILL_PREFIX),
		Progress: services.NewProgressService(repository.NewProgressRepository(db)),
		Issuer:   services.NewCertificateService(certRepo, files, env.CERTIFICATE_PREFIX, env.COMPANY_NAME),
	}, nil
}

// newFileStore returns Spaces when credentials are set, else the local media root
// served under /public
func newFileStore(env *config.EnviornmentVariable) (storage.Store, error) {
	spaces := storage.SpacesConfig{
		AccessKey: env.SPACES_ACCESS_KEY,
		SecretKey: env.SPACES_SECRET_KEY,
		Bucket:    env.SPACES_BUCKET,
		Region:    env.SPACES_REGION,
		Endpoint:  env.SPACES_ENDPOINT,
		CDNURL:    env.SPACES_CDN_URL,
	}
	if !spaces.IsConfigured() {
		return storage.NewLocalStore(env.MEDIA_ROOT, env.BASE_URL+"/public"), nil
	}

	store, err := storage.NewSpacesStore(spaces)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Spaces storage: %w", err)
	}
	return store, nil
}

// CronJobs returns the scheduled work backed by these services
func (s *Services) CronJobs() cron.Jobs {
	return cron.Jobs{
		Fulfillment: s.Fulfillment,
		Orders:      s.Payments,
		Challenges:  s.Challenges,
		Tokens:      s.Blacklist,
	}
}
