package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"bountyline/internal/engine"
	"bountyline/internal/repo"
	"bountyline/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"limit_reached"`
	Message string         `json:"message" example:"the submission cap for this reward has been reached"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"reward_id\":\"r1\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Bountyline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Bountyline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSpaces(group, cfg.Engine)
	registerRewards(group, cfg.Engine)
	registerApplications(group, cfg.Engine)
	registerWorkflows(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrLimitReached):
		return newAPIError(http.StatusConflict, "limit_reached", err.Error(), nil)
	case errors.Is(err, engine.ErrWrongState):
		return newAPIError(http.StatusConflict, "wrong_state", err.Error(), nil)
	case errors.Is(err, engine.ErrForbidden):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Bountyline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerSpaces(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-space",
		Method:        http.MethodPost,
		Path:          "/spaces",
		Summary:       "Create space",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateSpaceRequest `json:"body"`
	}) (*struct {
		Body SpaceResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.InitSpace(ctx, input.Body.ID, stringOrEmpty(input.Body.Name), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SpaceResponse `json:"body"`
		}{Body: spaceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-spaces",
		Method:      http.MethodGet,
		Path:        "/spaces",
		Summary:     "List spaces",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []SpaceResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListSpaces(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]SpaceResponse, 0, len(items))
		for _, s := range items {
			res = append(res, spaceResponse(s))
		}
		return &struct {
			Body []SpaceResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-space",
		Method:      http.MethodGet,
		Path:        "/spaces/{space_id}",
		Summary:     "Get space",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpaceID string `path:"space_id"`
	}) (*struct {
		Body SpaceResponse `json:"body"`
	}, error) {
		s, err := e.Repo.GetSpace(ctx, input.SpaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SpaceResponse `json:"body"`
		}{Body: spaceResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-space-config",
		Method:      http.MethodGet,
		Path:        "/spaces/{space_id}/config",
		Summary:     "Get space config",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SpaceID string `path:"space_id"`
	}) (*struct {
		Body SpaceConfigResponse `json:"body"`
	}, error) {
		cfg, err := e.Repo.GetSpaceConfig(ctx, input.SpaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SpaceConfigResponse `json:"body"`
		}{Body: configResponse(cfg)}, nil
	})
}

func registerRewards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-reward",
		Method:        http.MethodPost,
		Path:          "/spaces/{space_id}/rewards",
		Summary:       "Create reward",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		SpaceID string              `path:"space_id"`
		Body    CreateRewardRequest `json:"body"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.RewardCreateOptions{
			ID:                        stringOrEmpty(input.Body.ID),
			SpaceID:                   input.SpaceID,
			Title:                     input.Body.Title,
			Status:                    input.Body.Status,
			ChainID:                   input.Body.ChainID,
			RewardToken:               stringOrEmpty(input.Body.RewardToken),
			RewardAmount:              input.Body.RewardAmount,
			CustomReward:              stringOrEmpty(input.Body.CustomReward),
			ApproveSubmitters:         input.Body.ApproveSubmitters,
			AllowMultipleApplications: input.Body.AllowMultipleApplications,
			MaxSubmissions:            input.Body.MaxSubmissions,
			DueDate:                   stringOrEmpty(input.Body.DueDate),
			KYCRequired:               input.Body.KYCRequired,
			SubmitterPolicy:           submitterPolicyFromRequest(input.Body.SubmitterPolicy),
			Reviewers:                 reviewersFromRequest(input.Body.Reviewers),
			Fields:                    input.Body.Fields,
			PageID:                    stringOrEmpty(input.Body.PageID),
			ProposalID:                stringOrEmpty(input.Body.ProposalID),
			TemplateID:                stringOrEmpty(input.Body.TemplateID),
			IsTemplate:                input.Body.IsTemplate,
			IsMilestone:               input.Body.IsMilestone,
			ActorID:                   actorID,
		}
		rw, err := e.CreateReward(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rewards",
		Method:      http.MethodGet,
		Path:        "/spaces/{space_id}/rewards",
		Summary:     "List rewards",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SpaceID   string `path:"space_id"`
		Status    string `query:"status" enum:"suggestion,open,inProgress,complete,paid,cancelled"`
		CreatedBy string `query:"created_by"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedRewards `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorTS, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListRewards(ctx, repo.RewardFilters{
			SpaceID:         input.SpaceID,
			Status:          input.Status,
			CreatedBy:       input.CreatedBy,
			Limit:           limit + 1,
			CursorCreatedAt: cursorTS,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedRewards{Items: []RewardResponse{}}
		if len(items) > limit {
			next := items[limit]
			resp.NextCursor = composeCursor(next.CreatedAt, next.ID)
			items = items[:limit]
		}
		for _, rw := range items {
			resp.Items = append(resp.Items, rewardResponse(rw))
		}
		return &struct {
			Body paginatedRewards `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reward",
		Method:      http.MethodGet,
		Path:        "/rewards/{reward_id}",
		Summary:     "Get reward",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RewardID string `path:"reward_id"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		rw, err := e.Repo.GetReward(ctx, input.RewardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-reward",
		Method:      http.MethodPatch,
		Path:        "/rewards/{reward_id}",
		Summary:     "Update reward settings",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string              `path:"reward_id"`
		Body     UpdateRewardRequest `json:"body"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.UpdateRewardSettings(ctx, engine.RewardUpdateOptions{
			ID:                        input.RewardID,
			Title:                     input.Body.Title,
			ChainID:                   input.Body.ChainID,
			RewardToken:               input.Body.RewardToken,
			RewardAmount:              input.Body.RewardAmount,
			CustomReward:              input.Body.CustomReward,
			ApproveSubmitters:         input.Body.ApproveSubmitters,
			AllowMultipleApplications: input.Body.AllowMultipleApplications,
			MaxSubmissions:            input.Body.MaxSubmissions,
			DueDate:                   input.Body.DueDate,
			KYCRequired:               input.Body.KYCRequired,
			SubmitterPolicy:           submitterPolicyFromRequest(input.Body.SubmitterPolicy),
			Reviewers:                 reviewersFromRequest(input.Body.Reviewers),
			Fields:                    input.Body.Fields,
			ActorID:                   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-reward",
		Method:      http.MethodPost,
		Path:        "/rewards/{reward_id}/publish",
		Summary:     "Publish reward",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string               `path:"reward_id"`
		Body     PublishRewardRequest `json:"body"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.PublishReward(ctx, engine.PublishOptions{
			ID:              input.RewardID,
			Reviewers:       reviewersFromRequest(input.Body.Reviewers),
			SubmitterPolicy: submitterPolicyFromRequest(input.Body.SubmitterPolicy),
			PageTitle:       stringOrEmpty(input.Body.PageTitle),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-reward-users",
		Method:      http.MethodPut,
		Path:        "/rewards/{reward_id}/users",
		Summary:     "Set reviewers and submitters",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string                `path:"reward_id"`
		Body     SetRewardUsersRequest `json:"body"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.SetRewardUsers(ctx, engine.SetRewardUsersOptions{
			ID:              input.RewardID,
			Reviewers:       reviewersFromRequest(input.Body.Reviewers),
			SubmitterPolicy: submitterPolicyFromRequest(input.Body.SubmitterPolicy),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-out-reward",
		Method:      http.MethodPost,
		Path:        "/rewards/{reward_id}/close",
		Summary:     "Close out reward",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string `path:"reward_id"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.CloseOutReward(ctx, input.RewardID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-reward-paid",
		Method:      http.MethodPost,
		Path:        "/rewards/{reward_id}/paid",
		Summary:     "Mark reward as paid",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string `path:"reward_id"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.MarkRewardAsPaid(ctx, input.RewardID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lock-reward-submissions",
		Method:      http.MethodPost,
		Path:        "/rewards/{reward_id}/lock",
		Summary:     "Lock or unlock submissions",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string                 `path:"reward_id"`
		Body     LockSubmissionsRequest `json:"body"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.LockSubmissions(ctx, input.RewardID, input.Body.Locked, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recompute-reward-status",
		Method:      http.MethodPost,
		Path:        "/rewards/{reward_id}/recompute",
		Summary:     "Recompute reward status from applications",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RewardID string `path:"reward_id"`
	}) (*struct {
		Body RewardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rw, err := e.RecomputeRewardStatus(ctx, input.RewardID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RewardResponse `json:"body"`
		}{Body: rewardResponse(rw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reward-workflow",
		Method:      http.MethodGet,
		Path:        "/rewards/{reward_id}/workflow",
		Summary:     "Inferred workflow for a reward",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RewardID string `path:"reward_id"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		rw, err := e.Repo.GetReward(ctx, input.RewardID)
		if err != nil {
			return nil, handleError(err)
		}
		w := workflow.Infer(&rw)
		if w == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no workflow for reward", nil)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(*w)}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-application",
		Method:        http.MethodPost,
		Path:          "/rewards/{reward_id}/applications",
		Summary:       "Apply or submit work",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		RewardID string                   `path:"reward_id"`
		Body     CreateApplicationRequest `json:"body"`
	}) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateApplication(ctx, engine.ApplicationCreateOptions{
			ID:              stringOrEmpty(input.Body.ID),
			RewardID:        input.RewardID,
			Message:         input.Body.Message,
			Submission:      stringOrEmpty(input.Body.Submission),
			SubmissionNodes: stringOrEmpty(input.Body.SubmissionNodes),
			WalletAddress:   stringOrEmpty(input.Body.WalletAddress),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/rewards/{reward_id}/applications",
		Summary:     "List applications for a reward",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		RewardID  string `path:"reward_id"`
		Status    string `query:"status" enum:"applied,inProgress,review,submission_rejected,rejected,complete,processing,paid,cancelled"`
		CreatedBy string `query:"created_by"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedApplications `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.ListApplications(ctx, repo.ApplicationFilters{
			RewardID:  input.RewardID,
			Status:    input.Status,
			CreatedBy: input.CreatedBy,
			Limit:     limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedApplications{Items: []ApplicationResponse{}}
		for _, a := range items {
			resp.Items = append(resp.Items, applicationResponse(a))
		}
		return &struct {
			Body paginatedApplications `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{application_id}",
		Summary:     "Get application",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		a, err := e.Repo.GetApplication(ctx, input.ApplicationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-application",
		Method:      http.MethodPatch,
		Path:        "/applications/{application_id}",
		Summary:     "Update own application",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ApplicationID string                   `path:"application_id"`
		Body          UpdateApplicationRequest `json:"body"`
	}) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateApplication(ctx, engine.ApplicationUpdateOptions{
			ID:              input.ApplicationID,
			Message:         input.Body.Message,
			Submission:      input.Body.Submission,
			SubmissionNodes: input.Body.SubmissionNodes,
			WalletAddress:   input.Body.WalletAddress,
			RewardInfo:      input.Body.RewardInfo,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-application",
		Method:      http.MethodPost,
		Path:        "/applications/{application_id}/review",
		Summary:     "Review application",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ApplicationID string                   `path:"application_id"`
		Body          ReviewApplicationRequest `json:"body"`
	}) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.ReviewApplication(ctx, engine.ReviewOptions{
			ID:       input.ApplicationID,
			Decision: input.Body.Decision,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application-workflow",
		Method:      http.MethodGet,
		Path:        "/applications/{application_id}/workflow",
		Summary:     "Workflow progress for an application",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		a, err := e.Repo.GetApplication(ctx, input.ApplicationID)
		if err != nil {
			return nil, handleError(err)
		}
		rw, err := e.Repo.GetReward(ctx, a.RewardID)
		if err != nil {
			return nil, handleError(err)
		}
		w := workflow.Progress(&rw, &a)
		if w == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no workflow for reward", nil)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(*w)}, nil
	})
}

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/workflows",
		Summary:     "Workflow catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []WorkflowResponse `json:"body"`
	}, error) {
		catalog := workflow.Catalog()
		res := make([]WorkflowResponse, 0, len(catalog))
		for _, w := range catalog {
			res = append(res, workflowResponse(w))
		}
		return &struct {
			Body []WorkflowResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/spaces/{space_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SpaceID    string `path:"space_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"space,reward,application"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, input.SpaceID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

type MeResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok || p.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{ActorID: p.ActorID, Source: p.Source}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
