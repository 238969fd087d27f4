package router

import (
	"net/http"

	"github.com/poroburu/ic-cosmos/provider"
)

type (
	authorizeRequest struct {
		Principal provider.Principal `json:"principal"`
	}

	changedResponse struct {
		Changed bool `json:"changed"`
	}

	providersResponse struct {
		Providers []provider.Provider `json:"providers"`
	}

	authorizedResponse struct {
		Capability provider.Capability  `json:"capability"`
		Principals []provider.Principal `json:"principals"`
	}
)

// GET /v1/providers
func (r *router) handleGetProviders(w http.ResponseWriter, _ *http.Request) {
	providers := r.gateway.GetProviders()
	// Credentials stay inside the gateway.
	for i := range providers {
		if providers[i].Auth != nil {
			auth := *providers[i].Auth
			auth.Value = redacted
			providers[i].Auth = &auth
		}
	}
	r.writeJSON(w, http.StatusOK, providersResponse{Providers: providers})
}

const redacted = "<redacted>"

// POST /v1/providers
func (r *router) handleRegisterProvider(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	var args provider.RegisterArgs
	if err := r.decodeBody(w, req, &args); err != nil {
		r.writeError(w, err)
		return
	}
	if err := r.gateway.RegisterProvider(caller, args); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusCreated, changedResponse{Changed: true})
}

// PATCH /v1/providers/{id}
func (r *router) handleUpdateProvider(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	var args provider.UpdateArgs
	if err := r.decodeBody(w, req, &args); err != nil {
		r.writeError(w, err)
		return
	}
	args.ID = provider.ID(req.PathValue(pathParamProviderID))

	if err := r.gateway.UpdateProvider(caller, args); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, changedResponse{Changed: true})
}

// DELETE /v1/providers/{id}
func (r *router) handleUnregisterProvider(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	removed, err := r.gateway.UnregisterProvider(caller, provider.ID(req.PathValue(pathParamProviderID)))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, changedResponse{Changed: removed})
}

// GET /v1/authorized/{capability}
func (r *router) handleGetAuthorized(w http.ResponseWriter, req *http.Request) {
	capability, err := provider.ParseCapability(req.PathValue(pathParamCapability))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, authorizedResponse{
		Capability: capability,
		Principals: r.gateway.GetAuthorized(capability),
	})
}

// POST /v1/authorized/{capability}
func (r *router) handleAuthorize(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	capability, err := provider.ParseCapability(req.PathValue(pathParamCapability))
	if err != nil {
		r.writeError(w, err)
		return
	}
	var body authorizeRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	changed, err := r.gateway.Authorize(caller, body.Principal, capability)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}

// DELETE /v1/authorized/{capability}/{principal}
func (r *router) handleDeauthorize(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	capability, err := provider.ParseCapability(req.PathValue(pathParamCapability))
	if err != nil {
		r.writeError(w, err)
		return
	}

	principal := provider.Principal(req.PathValue(pathParamPrincipal))
	changed, err := r.gateway.Deauthorize(caller, principal, capability)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}
