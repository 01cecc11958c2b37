package api

import (
	"net/http"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
	"github.com/dtool-infra/dtool-config-generator/pkg/render"
)

// renderContext assembles the template context for a user and an
// optional fresh key pair.
func (h *Handlers) renderContext(user *models.User, accessKey, secretKey string) render.Context {
	return render.Context{
		Username:          user.Username,
		FullName:          user.GetDisplayName(),
		Email:             user.Email,
		ORCID:             user.ORCID,
		AccessKey:         accessKey,
		SecretKey:         secretKey,
		Bucket:            h.cfg.Generate.Bucket,
		S3Endpoint:        h.cfg.Generate.S3Endpoint,
		DatasetPrefix:     h.cfg.Generate.DatasetPrefix,
		LookupServerURL:   h.cfg.Registry.URL,
		TokenGeneratorURL: h.cfg.Registry.TokenURL,
	}
}

// GenerateConfig revokes all live access keys, issues a fresh pair
// and streams the rendered dtool.json as an attachment.
func (h *Handlers) GenerateConfig(w http.ResponseWriter, r *http.Request) {
	user := h.requireConfirmed(w, r)
	if user == nil {
		return
	}

	keys, err := h.creds.Recreate(r.Context(), user)
	if err != nil {
		logger.Error("credential recreation failed", "username", user.Username, "error", err)
		InternalServerError(w, "failed to issue credentials")
		return
	}

	artifact, err := h.renderer.Config(h.renderContext(user, keys.AccessKey, keys.SecretKey))
	if err != nil {
		logger.Error("config rendering failed", "username", user.Username, "error", err)
		InternalServerError(w, "failed to render configuration")
		return
	}

	logger.Info("issued dtool configuration", "username", user.Username)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment;filename=dtool.json`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}

// GenerateReadme streams the rendered readme template as an
// attachment. The readme carries profile fields only, no credentials
// are touched.
func (h *Handlers) GenerateReadme(w http.ResponseWriter, r *http.Request) {
	user := h.requireConfirmed(w, r)
	if user == nil {
		return
	}

	artifact, err := h.renderer.Readme(h.renderContext(user, "", ""))
	if err != nil {
		logger.Error("readme rendering failed", "username", user.Username, "error", err)
		InternalServerError(w, "failed to render readme template")
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment;filename=dtool_readme.yml`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}
