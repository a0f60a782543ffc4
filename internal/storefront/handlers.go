package storefront

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hrk/storefront-api/internal/catalog"
	"github.com/hrk/storefront-api/internal/checkout"
	"github.com/hrk/storefront-api/internal/common"
)

// SessionHeader lets non-browser clients pass the session id without cookies.
const SessionHeader = "X-Session-ID"

// ErrCheckoutInvalid carries the per-field messages of a rejected submission.
var ErrCheckoutInvalid = common.NewAppError("VALIDATION_FAILED", "checkout form is invalid", http.StatusUnprocessableEntity, nil)

// ErrInvalidItem is returned when a cart line cannot be added.
var ErrInvalidItem = common.NewAppError("INVALID_ITEM", "item name and a non-negative price are required", http.StatusUnprocessableEntity, nil)

// CookieConfig controls the session and CSRF cookies.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// Handler exposes the storefront session endpoints.
type Handler struct {
	Manager    *Manager
	Catalog    *catalog.Service
	Cookie     CookieConfig
	CSRFHeader string
	Logger     zerolog.Logger
}

type viewRequest struct {
	View string `json:"view"`
}

type categoryRequest struct {
	Category  string `json:"category"`
	ProductID string `json:"productId"`
}

type itemRequest struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
}

// SessionMiddleware resolves the session id from the header or cookie and
// stores it on the request context.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if id == "" {
			if c, err := r.Cookie(h.cookieName()); err == nil {
				id = strings.TrimSpace(c.Value)
			}
		}
		if id != "" {
			r = r.WithContext(common.WithSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /api/v1/storefront/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	csrfToken := uuid.NewString()
	h.setCookie(w, h.cookieName(), snap.SessionID, true)
	h.setCookie(w, h.csrfHeader(), csrfToken, false)
	common.JSON(w, http.StatusCreated, map[string]any{"data": snap, "csrfToken": csrfToken})
}

// Get handles GET /api/v1/storefront/session.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := common.SessionID(r.Context())
	snap, err := h.Manager.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// SetView handles PUT /api/v1/storefront/session/view.
func (h *Handler) SetView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.mutate(w, r, func(_ context.Context, s *Session) error {
		s.SetView(strings.TrimSpace(req.View))
		return nil
	})
}

// SelectCategory handles PUT /api/v1/storefront/session/category.
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.mutate(w, r, func(_ context.Context, s *Session) error {
		active := req.ProductID
		if active == "" {
			active = s.state.ActiveProduct
		}
		if h.Catalog != nil {
			if p, ok := h.Catalog.Select(req.Category, active); ok {
				active = p.ID
			}
		}
		s.SelectCategory(req.Category, active)
		return nil
	})
}

// AddItem handles POST /api/v1/storefront/cart/items. The body names either
// a catalog productId or a free-form name and price.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) error {
		if id := strings.TrimSpace(req.ProductID); id != "" {
			if h.Catalog == nil {
				return catalog.ErrProductNotFound
			}
			p, err := h.Catalog.Get(ctx, id)
			if err != nil {
				return err
			}
			if !s.AddProduct(ctx, p) {
				return ErrInvalidItem
			}
			return nil
		}
		if req.Price == nil || !s.AddItem(ctx, strings.TrimSpace(req.Name), *req.Price) {
			return ErrInvalidItem
		}
		return nil
	})
}

// RemoveItem handles DELETE /api/v1/storefront/cart/items/{name}. Removing
// an item that is not in the cart leaves it unchanged.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) error {
		s.RemoveItem(ctx, name)
		return nil
	})
}

// ClearCart handles DELETE /api/v1/storefront/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *Session) error {
		s.ClearCart(ctx)
		return nil
	})
}

// SaveDraft handles PUT /api/v1/storefront/checkout/draft.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if err := common.DecodeJSON(r, &form); err != nil {
		h.writeError(w, err)
		return
	}
	h.mutate(w, r, func(_ context.Context, s *Session) error {
		s.SaveDraft(form)
		return nil
	})
}

// Checkout handles POST /api/v1/storefront/checkout. A rejected submission
// answers 422 with every validation message.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if err := common.DecodeJSON(r, &form); err != nil {
		h.writeError(w, err)
		return
	}
	id, _ := common.SessionID(r.Context())
	var res checkout.Result
	snap, err := h.Manager.Do(r.Context(), id, func(_ context.Context, s *Session) error {
		res = s.Submit(form)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !res.OK() {
		common.WriteError(w, ErrCheckoutInvalid.WithDetails(map[string]any{"errors": res.Errors}))
		return
	}
	h.Logger.Info().Str("session_id", id).Int("cart_size", res.Summary.ItemCount).Msg("checkout intent accepted")
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"result": res, "snapshot": snap}})
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, *Session) error) {
	id, _ := common.SessionID(r.Context())
	snap, err := h.Manager.Do(r.Context(), id, fn)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		common.WriteError(w, common.ErrUnavailable.Wrap(err))
		return
	}
	if !common.IsAppError(err) {
		h.Logger.Error().Err(err).Msg("storefront request failed")
	}
	common.WriteError(w, err)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, httpOnly bool) {
	sameSite := h.Cookie.SameSite
	if sameSite == http.SameSiteDefaultMode {
		sameSite = http.SameSiteLaxMode
	}
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.Cookie.Domain,
		Secure:   h.Cookie.Secure,
		HttpOnly: httpOnly,
		SameSite: sameSite,
	}
	if h.Cookie.MaxAge > 0 {
		cookie.MaxAge = int(h.Cookie.MaxAge / time.Second)
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) cookieName() string {
	if name := strings.TrimSpace(h.Cookie.Name); name != "" {
		return name
	}
	return "storefront_session"
}

func (h *Handler) csrfHeader() string {
	if name := strings.TrimSpace(h.CSRFHeader); name != "" {
		return name
	}
	return "X-CSRF-Token"
}
