package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"server/internal/providers/image"
	"server/internal/sqlinline"
)

type generateRequest struct {
	Styles                 []string `json:"styles"`
	SizePreference         string   `json:"sizePreference"`
	SubjectMatter          string   `json:"subjectMatter"`
	ColorPreference        string   `json:"colorPreference"`
	BodyParts              []string `json:"bodyParts"`
	ReferenceImage         string   `json:"referenceImage"`
	ReferenceImageMimeType string   `json:"referenceImageMimeType"`
	PreferredService       string   `json:"preferredService"`
	GenerateAllStyles      bool     `json:"generateAllStyles"`
	UserEmail              string   `json:"userEmail"`
}

type styleImageDTO struct {
	Style string `json:"style"`
	Image string `json:"image"`
}

func (a *App) GenerateTattoo(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	if req.PreferredService == "" {
		req.PreferredService = a.Config.PreferredImageProvider
	}
	designReq, err := req.toDesignRequest()
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	designReq.Normalize()
	if err := designReq.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "styles are required, and either subjectMatter or referenceImage must be present")
		return
	}

	identityKey, _, _, err := a.identity(r, req.UserEmail)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	check, err := a.Ledger.Check(r.Context(), identityKey)
	if err != nil {
		a.Logger.Error().Err(err).Msg("entitlement check failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check entitlement")
		return
	}
	if !check.Allowed {
		a.error(w, http.StatusPaymentRequired, "payment_required", check.Reason)
		return
	}

	outcome, err := a.Pipeline.Generate(r.Context(), designReq)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if !outcome.Succeeded() {
		a.json(w, http.StatusOK, map[string]any{
			"success":                  true,
			"prompt":                   outcome.Prompt,
			"note":                     "No image provider produced a design; the prompt is still usable with any external generator.",
			"imageGenerationAvailable": false,
			"needsSetup":               !outcome.AnyConfigured,
			"setupInstructions":        outcome.SetupInstructions,
			"errors":                   outcome.Errors,
		})
		return
	}

	// The claim happens only after the pipeline succeeded, and its
	// conditional update is what makes the credit exactly-once under
	// concurrent requests.
	if err := a.Ledger.Consume(r.Context(), identityKey); err != nil {
		a.Logger.Warn().Err(err).Str("identity", identityKey).Msg("generation produced but credit claim failed")
		a.error(w, http.StatusPaymentRequired, "payment_required", "Generation limit reached")
		return
	}

	designID := a.persistDesign(r, identityKey, designReq, outcome)

	resp := map[string]any{
		"success":  true,
		"image":    outcome.Image.Base64,
		"mimeType": outcome.Image.MIME,
		"prompt":   outcome.Prompt,
		"model":    outcome.Image.Model,
	}
	if designID != "" {
		resp["designId"] = designID
	}
	if outcome.AllStyles {
		resp["allStyles"] = true
		images := make([]styleImageDTO, 0, len(outcome.StyleImages))
		for _, si := range outcome.StyleImages {
			images = append(images, styleImageDTO{Style: image.StyleDisplayName(si.Style), Image: si.Base64})
		}
		resp["images"] = images
	}
	a.json(w, http.StatusOK, resp)
}

func (req *generateRequest) toDesignRequest() (image.DesignRequest, error) {
	design := image.DesignRequest{
		SubjectMatter:     req.SubjectMatter,
		Styles:            req.Styles,
		BodyParts:         req.BodyParts,
		PreferredProvider: req.PreferredService,
		GenerateAllStyles: req.GenerateAllStyles,
	}

	switch strings.ToLower(strings.TrimSpace(req.ColorPreference)) {
	case "", "all":
		design.ColorPreference = image.ColorUnspecified
	case "color":
		design.ColorPreference = image.ColorFull
	case "bw", "blackandwhite", "black_and_white":
		design.ColorPreference = image.ColorBlackAndWhite
	default:
		return design, errInvalidField("colorPreference")
	}

	// "all" means no size filter, the same as leaving the field out.
	switch strings.ToLower(strings.TrimSpace(req.SizePreference)) {
	case "", "all":
		design.SizePreference = image.SizeUnspecified
	case "small":
		design.SizePreference = image.SizeSmall
	case "medium":
		design.SizePreference = image.SizeMedium
	case "large":
		design.SizePreference = image.SizeLarge
	default:
		return design, errInvalidField("sizePreference")
	}

	if req.ReferenceImage != "" {
		ref, err := image.DecodeReference(req.ReferenceImage, req.ReferenceImageMimeType)
		if err != nil {
			return design, errInvalidField("referenceImage")
		}
		design.Reference = ref
	}
	return design, nil
}

type fieldError string

func errInvalidField(name string) error { return fieldError(name) }

func (f fieldError) Error() string { return "invalid value for " + string(f) }

// persistDesign records a successful generation for the gallery and the zip
// download. Persistence failures are logged but never retract the image the
// user already paid for.
func (a *App) persistDesign(r *http.Request, identityKey string, req image.DesignRequest, outcome *image.Outcome) string {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertGeneratedDesign,
		identityKey, outcome.Prompt, req.Styles, req.BodyParts,
		string(req.ColorPreference), string(req.SizePreference),
		outcome.Provider, outcome.Image.Model,
		outcome.Image.Base64, outcome.Image.MIME)
	var designID string
	if err := row.Scan(&designID); err != nil {
		a.Logger.Error().Err(err).Msg("persist generated design failed")
		return ""
	}
	for _, si := range outcome.StyleImages {
		if _, err := a.SQL.Exec(r.Context(), sqlinline.QInsertStyleVariant, designID, si.Style, si.Base64, si.MIME); err != nil {
			a.Logger.Error().Err(err).Str("style", si.Style).Msg("persist style variant failed")
		}
	}
	return designID
}
