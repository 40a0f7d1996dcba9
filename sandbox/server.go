// Package sandbox is a local stand-in for the invoice service. It speaks the
// same HTTP contract as the production backend so clients can be exercised
// end to end without a chain scanner: confirmations are simulated by
// counting status checks.
package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/lifecycle"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

// Config controls the simulated backend
type Config struct {
	// Invoice lifetime from creation.
	TTL time.Duration
	// Number of check-status calls on a PROCESSING invoice before it confirms.
	ConfirmAfter int
	// When false, confirmed invoices never get a receipt URL.
	IssueReceipts bool
	// Base URL receipts are served from.
	ReceiptBaseURL string
	// Default merchant addresses per network.
	SolanaMerchant string
	EVMMerchant    string
	// FailTx marks a submitted transaction as failed on its next status check.
	FailTx func(hash string) bool
}

// DefaultConfig is a 15 minute invoice that confirms on the second check
func DefaultConfig() Config {
	return Config{
		TTL:            15 * time.Minute,
		ConfirmAfter:   2,
		IssueReceipts:  true,
		ReceiptBaseURL: "https://receipts.sandbox.invalid",
		SolanaMerchant: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		EVMMerchant:    "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
	}
}

// Server is the sandbox invoice service
type Server struct {
	app    *fiber.App
	store  *Store
	clock  clock.Clock
	cfg    Config
	logger logger.Logger

	mu     sync.Mutex
	serial int
}

// New creates a sandbox server over store
func New(store *Store, cfg Config, clk clock.Clock, log logger.Logger) *Server {
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.ConfirmAfter <= 0 {
		cfg.ConfirmAfter = 1
	}

	s := &Server{
		store:  store,
		clock:  clk,
		cfg:    cfg,
		logger: logger.OrNoop(log),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Post("/invoices", s.createInvoice)
	s.app.Get("/invoices/:id", s.getInvoice)
	s.app.Post("/invoices/:id/verify", s.verify)
	s.app.Post("/invoices/:id/check-status", s.checkStatus)
	s.app.Post("/invoices/:id/cancel", s.cancel)
}

// Handler exposes the server as a net/http handler
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func fail(status int, code, format string, args ...any) error {
	return &apiError{status: status, code: code, msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var ae *apiError
	var fe *fiber.Error
	switch {
	case errors.As(err, &ae):
	case errors.As(err, &fe):
		ae = &apiError{status: fe.Code, code: types.ErrInvalidInvoice, msg: fe.Message}
	default:
		s.logger.Error("sandbox request failed", map[string]any{"path": c.Path(), "error": err})
		ae = &apiError{status: fiber.StatusInternalServerError, code: types.ErrNetworkError, msg: "internal error"}
	}
	return c.Status(ae.status).JSON(types.InvoiceError{Code: ae.code, Message: ae.msg})
}

func (s *Server) createInvoice(c *fiber.Ctx) error {
	var req types.CreateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(fiber.StatusBadRequest, types.ErrInvalidInvoice, "invalid body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return fail(fiber.StatusUnprocessableEntity, types.CodeOf(err), "%v", err)
	}

	rail, err := req.PaymentMethod.Rail()
	if err != nil {
		return fail(fiber.StatusUnprocessableEntity, types.ErrUnsupportedToken, "%v", err)
	}

	now := s.clock.Now().UTC()
	inv := types.Invoice{
		ID:            uuid.NewString(),
		AmountFiat:    req.AmountFiat,
		FiatCurrency:  req.FiatCurrency,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: types.StatusPendingPayment,
		ExpiresAt:     now.Add(s.cfg.TTL),
	}

	switch r := rail.(type) {
	case types.PayPalRail:
		order := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:17]
		checkout := "https://www.sandbox.paypal.com/checkoutnow?token=" + order
		inv.MerchantAddress = "paypal"
		inv.PayPalOrderID = &order
		inv.PayPalCheckoutURL = &checkout
	case types.SolanaRail:
		inv.MerchantAddress = pick(req.Recipient, s.cfg.SolanaMerchant)
		setTokenAmount(&inv, r.Token)
	case types.EVMRail:
		inv.MerchantAddress = pick(req.Recipient, s.cfg.EVMMerchant)
		setTokenAmount(&inv, r.Token)
	}

	if err := s.store.put(&record{Invoice: inv}); err != nil {
		return err
	}

	s.logger.Info("sandbox invoice created", map[string]any{"invoice_id": inv.ID, "method": inv.PaymentMethod})
	return c.Status(fiber.StatusCreated).JSON(inv)
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// setTokenAmount quotes stablecoins 1:1 against the fiat amount
func setTokenAmount(inv *types.Invoice, symbol string) {
	amount := inv.AmountFiat
	inv.ExpectedTokenAmount = &amount
	inv.TokenSymbol = &symbol
}

// load fetches a record and applies lazy expiry
func (s *Server) load(id string) (*record, error) {
	rec, err := s.store.get(id)
	if errors.Is(err, errNotFound) {
		return nil, fail(fiber.StatusNotFound, types.ErrNotFound, "invoice %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	inv := &rec.Invoice
	if lifecycle.Effective(inv, s.clock.Now()) != inv.PaymentStatus {
		inv.PaymentStatus = types.StatusExpired
		if err := s.store.put(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Server) getInvoice(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec.Invoice)
}

func (s *Server) verify(c *fiber.Ctx) error {
	var req types.VerifyRequest
	if err := c.BodyParser(&req); err != nil || req.TransactionHash == "" {
		return fail(fiber.StatusBadRequest, types.ErrVerificationFailed, "transactionHash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(c.Params("id"))
	if err != nil {
		return err
	}
	inv := &rec.Invoice

	rail, err := inv.PaymentMethod.Rail()
	if err != nil {
		return err
	}
	network, ok := types.RailNetwork(rail)
	if !ok {
		return fail(fiber.StatusUnprocessableEntity, types.ErrVerificationFailed, "invoice %s is not paid on-chain", inv.ID)
	}

	// Same hash again: nothing to do.
	if inv.TransactionHash != nil && *inv.TransactionHash == req.TransactionHash {
		return c.JSON(inv)
	}

	switch inv.PaymentStatus {
	case types.StatusPendingPayment:
	case types.StatusExpired:
		return fail(fiber.StatusGone, types.ErrInvoiceExpired, "invoice %s has expired", inv.ID)
	default:
		return fail(fiber.StatusConflict, types.ErrInvalidTransition, "invoice %s is %s", inv.ID, inv.PaymentStatus)
	}

	if err := utils.ValidateTransactionHash(req.TransactionHash, network); err != nil {
		return fail(fiber.StatusUnprocessableEntity, types.ErrVerificationFailed, "%v", err)
	}

	owner, err := s.store.bindTx(network, req.TransactionHash, inv.ID)
	if err != nil {
		return err
	}
	if owner != inv.ID {
		return fail(fiber.StatusUnprocessableEntity, types.ErrVerificationFailed, "transaction belongs to another invoice")
	}

	hash := req.TransactionHash
	inv.TransactionHash = &hash
	inv.Network = &network
	inv.PaymentStatus = types.StatusProcessing
	if err := s.store.put(rec); err != nil {
		return err
	}

	s.logger.Info("sandbox transaction submitted", map[string]any{"invoice_id": inv.ID, "tx_hash": hash})
	return c.JSON(inv)
}

func (s *Server) checkStatus(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(c.Params("id"))
	if err != nil {
		return err
	}
	inv := &rec.Invoice

	if inv.PaymentStatus == types.StatusProcessing {
		rec.Checks++
		switch {
		case s.cfg.FailTx != nil && s.cfg.FailTx(*inv.TransactionHash):
			inv.PaymentStatus = types.StatusFailed
		case rec.Checks >= s.cfg.ConfirmAfter:
			s.confirm(inv)
		}
		if err := s.store.put(rec); err != nil {
			return err
		}
	}
	return c.JSON(inv)
}

func (s *Server) confirm(inv *types.Invoice) {
	s.serial++
	number := fmt.Sprintf("INV-%06d", s.serial)
	inv.InvoiceNumber = &number
	inv.PaymentStatus = types.StatusConfirmed
	if s.cfg.IssueReceipts {
		pdf := strings.TrimRight(s.cfg.ReceiptBaseURL, "/") + "/" + inv.ID + ".pdf"
		inv.IssuedPDFURL = &pdf
	}
}

func (s *Server) cancel(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(c.Params("id"))
	if err != nil {
		return err
	}
	inv := &rec.Invoice

	if err := lifecycle.CheckCancelable(inv); err != nil {
		return fail(fiber.StatusConflict, types.ErrInvalidTransition, "%v", err)
	}
	inv.PaymentStatus = types.StatusCancelled
	if err := s.store.put(rec); err != nil {
		return err
	}
	return c.JSON(inv)
}
