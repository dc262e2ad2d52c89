package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/storage"
)

// AdminHandler provisions tenants and API keys. It is gated behind the
// same bearer-auth middleware as every other route; HiveBoard has no
// separate admin credential, so an operator is expected to hit these
// endpoints with a `live` key already scoped to the tenant it manages, or
// to call them out-of-band before distributing keys to agents.
type AdminHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(store *storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

// CreateTenant handles POST /v1/admin/tenants.
func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
		Plan     string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.BadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if body.TenantID == "" {
		writeError(w, apierr.BadRequest("tenant_id is required"))
		return
	}

	plan := model.Plan(body.Plan)
	if _, ok := model.RetentionDays[plan]; !ok {
		plan = model.PlanFree
	}

	tenant, err := h.store.CreateTenant(body.TenantID, plan)
	if err != nil {
		writeError(w, apierr.New(http.StatusConflict, apierr.CodeConflict, err.Error()))
		return
	}
	h.logger.Info().Str("tenant_id", tenant.TenantID).Str("plan", string(tenant.Plan)).Msg("tenant created")
	writeJSON(w, http.StatusCreated, tenant)
}

// CreateKey handles POST /v1/admin/keys. The raw key is returned exactly
// once; only its hash is ever persisted.
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
		KeyType  string `json:"key_type"`
		Label    string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.BadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if body.TenantID == "" {
		writeError(w, apierr.BadRequest("tenant_id is required"))
		return
	}
	if _, ok := h.store.GetTenant(body.TenantID); !ok {
		writeError(w, apierr.NotFound("tenant not found"))
		return
	}

	keyType := model.KeyType(body.KeyType)
	switch keyType {
	case model.KeyTypeLive, model.KeyTypeTest, model.KeyTypeRead:
	default:
		keyType = model.KeyTypeLive
	}

	rawKey, err := generateRawKey()
	if err != nil {
		writeError(w, apierr.Internal(err.Error()))
		return
	}
	if err := h.store.CreateAPIKey(body.TenantID, keyType, body.Label, rawKey); err != nil {
		writeError(w, apierr.Internal(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"api_key": rawKey, "tenant_id": body.TenantID, "key_type": string(keyType)})
}

func generateRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("handler: generate key: %w", err)
	}
	return "hb_" + hex.EncodeToString(buf), nil
}
