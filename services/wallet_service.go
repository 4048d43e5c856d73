// services/wallet_service.go
package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"wallet-trust-system/middleware"
	"wallet-trust-system/models"
	"wallet-trust-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletService exposes the wallet core over HTTP.
type WalletService struct {
	Core      *Core
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *zap.Logger
}

func NewWalletService(core *Core, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{Core: core, JWTSecret: jwtSecret, TokenTTL: tokenTTL, Logger: logger}
}

// respondError maps a core error kind onto its HTTP status.
func (s *WalletService) respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = fiber.StatusConflict
	}
	if status == fiber.StatusInternalServerError {
		s.Logger.Error("[HTTP] request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *WalletService) actingWallet(c *fiber.Ctx) (*Wallet, error) {
	id, ok := middleware.WalletID(c)
	if !ok {
		return nil, ErrUnauthorized
	}
	w, err := s.Core.Wallet(c.UserContext(), id)
	if errors.Is(err, ErrNotFound) {
		// token outlived its wallet
		return nil, ErrUnauthorized
	}
	return w, err
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, invalidInput("id must be a positive integer, got %q", c.Params("id"))
	}
	return uint(id), nil
}

// CreateWallet registers a wallet. Admin only.
func (s *WalletService) CreateWallet(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	w, err := s.Core.CreateWallet(c.UserContext(), req.Name, req.Password)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(w.Record())
}

// IssueToken exchanges wallet name and password for a bearer token.
func (s *WalletService) IssueToken(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}

	w, err := s.Core.WalletByName(c.UserContext(), req.Name)
	if errors.Is(err, ErrNotFound) {
		// same answer as a bad password
		return s.respondError(c, ErrUnauthorized)
	}
	if err != nil {
		return s.respondError(c, err)
	}
	walletID, err := w.Authorize(req.Password)
	if err != nil {
		s.Logger.Info("[AUTH] rejected credentials", zap.Uint("wallet_id", w.ID()))
		return s.respondError(c, err)
	}

	token, expires, err := utils.IssueWalletToken(s.JWTSecret, walletID, w.Name(), s.TokenTTL)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expires,
		"wallet_id":  walletID,
	})
}

func (s *WalletService) Me(c *fiber.Ctx) error {
	w, err := s.actingWallet(c)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(w.Record())
}

func (s *WalletService) RequestTrust(c *fiber.Ctx) error {
	w, err := s.actingWallet(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req struct {
		Type   string `json:"type"`
		Target string `json:"target"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	rel, err := w.RequestTrust(c.UserContext(), strings.ToLower(strings.TrimSpace(req.Type)), req.Target)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rel)
}

func (s *WalletService) ListTrust(c *fiber.Ctx) error {
	w, err := s.actingWallet(c)
	if err != nil {
		return s.respondError(c, err)
	}
	rels, err := w.TrustRelationships(c.UserContext(), TrustFilter{
		State: models.TrustState(c.Query("state")),
		Type:  models.TrustRequestType(c.Query("type")),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(rels)
}

type trustAction func(w *Wallet, c *fiber.Ctx, id uint) (*models.TrustRelationship, error)

func (s *WalletService) trustHandler(action trustAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		w, err := s.actingWallet(c)
		if err != nil {
			return s.respondError(c, err)
		}
		id, err := paramID(c)
		if err != nil {
			return s.respondError(c, err)
		}
		rel, err := action(w, c, id)
		if err != nil {
			return s.respondError(c, err)
		}
		return c.JSON(rel)
	}
}

func (s *WalletService) AcceptTrust() fiber.Handler {
	return s.trustHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.TrustRelationship, error) {
		return w.AcceptTrustRequest(c.UserContext(), id)
	})
}

func (s *WalletService) DeclineTrust() fiber.Handler {
	return s.trustHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.TrustRelationship, error) {
		return w.DeclineTrustRequest(c.UserContext(), id)
	})
}

func (s *WalletService) CancelTrust() fiber.Handler {
	return s.trustHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.TrustRelationship, error) {
		return w.CancelTrustRequest(c.UserContext(), id)
	})
}

// AttemptTransfer answers 200 when the movement executed and 202 when it was
// recorded for the other party to resolve.
func (s *WalletService) AttemptTransfer(c *fiber.Ctx) error {
	w, err := s.actingWallet(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req struct {
		Sender   string `json:"sender"`
		Receiver string `json:"receiver"`
		Amount   string `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return s.respondError(c, invalidInput("amount %q is not a decimal number", req.Amount))
	}

	ctx := c.UserContext()
	sender := w
	if req.Sender != "" {
		if sender, err = s.Core.WalletByName(ctx, req.Sender); err != nil {
			return s.respondError(c, err)
		}
	}
	receiver, err := s.Core.WalletByName(ctx, req.Receiver)
	if err != nil {
		return s.respondError(c, err)
	}

	res, err := w.AttemptTransfer(ctx, sender, receiver, amount)
	if err != nil {
		return s.respondError(c, err)
	}
	if res.Deferred() {
		return c.Status(fiber.StatusAccepted).JSON(res)
	}
	return c.JSON(res)
}

func (s *WalletService) ListTransfers(c *fiber.Ctx) error {
	w, err := s.actingWallet(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var states []models.TransferState
	for _, raw := range strings.Split(c.Query("state"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			states = append(states, models.TransferState(raw))
		}
	}
	transfers, err := w.Transfers(c.UserContext(), states...)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(transfers)
}

func (s *WalletService) PendingTransfers(c *fiber.Ctx) error {
	w, err := s.actingWallet(c)
	if err != nil {
		return s.respondError(c, err)
	}
	transfers, err := w.PendingTransfers(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(transfers)
}

type transferAction func(w *Wallet, c *fiber.Ctx, id uint) (*models.Transfer, error)

func (s *WalletService) transferHandler(action transferAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		w, err := s.actingWallet(c)
		if err != nil {
			return s.respondError(c, err)
		}
		id, err := paramID(c)
		if err != nil {
			return s.respondError(c, err)
		}
		t, err := action(w, c, id)
		if err != nil {
			return s.respondError(c, err)
		}
		return c.JSON(t)
	}
}

func (s *WalletService) AcceptTransfer() fiber.Handler {
	return s.transferHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.Transfer, error) {
		return w.AcceptTransfer(c.UserContext(), id)
	})
}

func (s *WalletService) DeclineTransfer() fiber.Handler {
	return s.transferHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.Transfer, error) {
		return w.DeclineTransfer(c.UserContext(), id)
	})
}

func (s *WalletService) CancelTransfer() fiber.Handler {
	return s.transferHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.Transfer, error) {
		return w.CancelTransfer(c.UserContext(), id)
	})
}

func (s *WalletService) FulfillTransfer() fiber.Handler {
	return s.transferHandler(func(w *Wallet, c *fiber.Ctx, id uint) (*models.Transfer, error) {
		return w.FulfillTransfer(c.UserContext(), id)
	})
}
