package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/archos-hq/archos/internal/entity"
	"github.com/archos-hq/archos/internal/hub"
	"github.com/archos-hq/archos/internal/resilience"
	"github.com/archos-hq/archos/internal/secretbox"
	"github.com/archos-hq/archos/pkg/resource"
)

// errNoSecretKey is returned for secret mutations when no encryption key is
// configured.
var errNoSecretKey = errors.New("secret encryption key not configured")

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func (g *Gateway) handleList(w http.ResponseWriter, r *http.Request) {
	res, ok := g.resolve(w, r)
	if !ok {
		return
	}

	rows, err := res.List(r.Context())
	if err != nil {
		g.writeError(w, err)
		return
	}
	if res.Name() == entity.TableSecrets {
		rows = g.maskSecrets(rows)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := g.resolve(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		g.writeError(w, &resource.ValidationError{Table: res.Name(), Reason: "body", Err: err})
		return
	}
	if res.Name() == entity.TableSecrets {
		body, err = g.sealSecretBody(body)
		if err != nil {
			g.writeError(w, err)
			return
		}
	}

	var row any
	err = g.breaker.Execute(func() error {
		var e error
		row, e = res.Create(r.Context(), body)
		return e
	})
	g.metrics.RecordMutation(r.Context(), res.Name(), "create", mutationStatus(err))
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (g *Gateway) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res, ok := g.resolve(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		g.writeError(w, &resource.ValidationError{Table: res.Name(), Reason: "body", Err: err})
		return
	}
	if res.Name() == entity.TableSecrets {
		body, err = g.sealSecretBody(body)
		if err != nil {
			g.writeError(w, err)
			return
		}
	}

	var patch resource.Patch
	if err := json.Unmarshal(body, &patch); err != nil {
		g.writeError(w, &resource.ValidationError{Table: res.Name(), Reason: "malformed patch", Err: err})
		return
	}

	var row any
	err = g.breaker.Execute(func() error {
		var e error
		row, e = res.Update(r.Context(), r.PathValue("id"), patch)
		return e
	})
	g.metrics.RecordMutation(r.Context(), res.Name(), "update", mutationStatus(err))
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (g *Gateway) handleRemove(w http.ResponseWriter, r *http.Request) {
	res, ok := g.resolve(w, r)
	if !ok {
		return
	}

	err := g.breaker.Execute(func() error {
		return res.Remove(r.Context(), r.PathValue("id"))
	})
	g.metrics.RecordMutation(r.Context(), res.Name(), "remove", mutationStatus(err))
	if err != nil {
		g.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Derived views ───────────────────────────────────────────────────────────

func (g *Gateway) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.hub.KnowledgeCategories())
}

func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, g.hub.SearchKnowledge(q))
}

func (g *Gateway) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	out := struct {
		Model *entity.Model `json:"model"`
		Voice *entity.Voice `json:"voice"`
	}{}
	if m, ok := g.hub.DefaultModel(); ok {
		out.Model = &m
	}
	if v, ok := g.hub.DefaultVoice(); ok {
		out.Voice = &v
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.hub.ServiceStatuses(time.Now()))
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// resolve looks up the hub resource named in the path, writing a 404 when
// it does not exist.
func (g *Gateway) resolve(w http.ResponseWriter, r *http.Request) (hub.Resource, bool) {
	name := r.PathValue("resource")
	res, ok := g.hub.Resource(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown resource " + name})
		return nil, false
	}
	return res, true
}

// sealSecretBody replaces the plaintext encrypted_value field with its
// ciphertext before the row is persisted.
func (g *Gateway) sealSecretBody(body []byte) ([]byte, error) {
	if g.box == nil {
		return nil, &resource.PermissionError{Table: entity.TableSecrets, Op: "write", Err: errNoSecretKey}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &resource.ValidationError{Table: entity.TableSecrets, Reason: "malformed body", Err: err}
	}

	raw, ok := fields["encrypted_value"]
	if !ok {
		return body, nil
	}
	var plaintext string
	if err := json.Unmarshal(raw, &plaintext); err != nil {
		return nil, &resource.ValidationError{Table: entity.TableSecrets, Reason: "encrypted_value must be a string", Err: err}
	}

	ciphertext, err := g.box.Seal(plaintext)
	if err != nil {
		return nil, err
	}
	sealed, err := json.Marshal(ciphertext)
	if err != nil {
		return nil, err
	}
	fields["encrypted_value"] = sealed
	return json.Marshal(fields)
}

// maskSecrets replaces ciphertexts with display masks. When the box can
// decrypt, the mask keeps the plaintext's first and last characters so
// operators can tell keys apart; otherwise everything is hidden.
func (g *Gateway) maskSecrets(rows any) any {
	secrets, ok := rows.([]entity.Secret)
	if !ok {
		return rows
	}
	masked := make([]entity.Secret, len(secrets))
	for i, s := range secrets {
		if g.box != nil {
			if plaintext, err := g.box.Open(s.EncryptedValue); err == nil {
				s.EncryptedValue = secretbox.Mask(plaintext)
				masked[i] = s
				continue
			}
		}
		s.EncryptedValue = "****"
		masked[i] = s
	}
	return masked
}

func mutationStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// writeError maps the resource error taxonomy onto HTTP status codes.
func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case resource.IsValidation(err):
		status = http.StatusBadRequest
	case resource.IsNotFound(err):
		status = http.StatusNotFound
	case resource.IsPermission(err):
		status = http.StatusForbidden
	case resource.IsConnectivity(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		g.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
