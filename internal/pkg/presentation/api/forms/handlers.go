package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/diwise/entity-binder/internal/pkg/application/binder"
	"github.com/diwise/entity-binder/internal/pkg/presentation/api/forms/auth"
	"github.com/diwise/entity-binder/internal/pkg/presentation/api/forms/problems"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("entity-binder/forms")

const maxBodySize int64 = 1 << 20

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app binder.EntityBinderApp) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Logger(logging.GetFromContext(ctx)))

		r.Get("/mappers", NewListMappersHandler(app, authenticator))

		r.Route("/{mapper}", func(r chi.Router) {
			r.Get("/", NewListEntitiesHandler(app, authenticator))
			r.Post("/", NewBindEntityHandler(app, authenticator))
			r.Get("/{id}", NewRetrieveEntityHandler(app, authenticator))
		})
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func NewListMappersHandler(app binder.EntityBinderApp, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "list-mappers")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, "", nil)
		if err != nil {
			problems.ReportUnauthorizedRequest(w, err.Error())
			return
		}

		writeJSON(ctx, w, http.StatusOK, app.Mappers())
	})
}

// NewBindEntityHandler binds a form or a flat json object to an entity of the
// requested mapper, saves it and responds with the flattened entity
func NewBindEntityHandler(app binder.EntityBinderApp, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		mapper := chi.URLParam(r, "mapper")

		ctx, span := tracer.Start(r.Context(), "bind-entity",
			trace.WithAttributes(attribute.String("mapper", mapper)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		logger := logging.GetFromContext(ctx).With("mapper", mapper)

		b, err := app.Binder(mapper)
		if err != nil {
			problems.ReportError(w, err)
			return
		}

		values, err := requestValues(w, r)
		if err != nil {
			problems.ReportNewInvalidRequest(w, err.Error())
			return
		}

		err = authenticator.CheckAccess(ctx, r, mapper, keysOf(values))
		if err != nil {
			problems.ReportUnauthorizedRequest(w, err.Error())
			return
		}

		record, created, err := b.Bind(ctx, values)
		if err != nil {
			logger.Error("failed to bind entity", "err", err.Error())
			problems.ReportError(w, err)
			return
		}

		if !created {
			writeJSON(ctx, w, http.StatusOK, record)
			return
		}

		w.Header().Add("Location", fmt.Sprintf("/api/v1/%s/%s", url.PathEscape(mapper), url.PathEscape(record[b.IDField()])))
		writeJSON(ctx, w, http.StatusCreated, record)
	})
}

func NewRetrieveEntityHandler(app binder.EntityBinderApp, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		mapper := chi.URLParam(r, "mapper")
		id, _ := url.PathUnescape(chi.URLParam(r, "id"))

		ctx, span := tracer.Start(r.Context(), "retrieve-entity",
			trace.WithAttributes(attribute.String("mapper", mapper), attribute.String("entity-id", id)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		b, err := app.Binder(mapper)
		if err != nil {
			problems.ReportError(w, err)
			return
		}

		err = authenticator.CheckAccess(ctx, r, mapper, b.Fields())
		if err != nil {
			problems.ReportUnauthorizedRequest(w, err.Error())
			return
		}

		record, err := b.Retrieve(ctx, id)
		if err != nil {
			problems.ReportError(w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, record)
	})
}

type tableResponse struct {
	TotalRecords        int        `json:"iTotalRecords"`
	TotalDisplayRecords int        `json:"iTotalDisplayRecords"`
	Data                [][]string `json:"aaData"`
}

// NewListEntitiesHandler lists the selected columns of all entities of a mapper
// in the format expected by DataTables
func NewListEntitiesHandler(app binder.EntityBinderApp, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		mapper := chi.URLParam(r, "mapper")

		ctx, span := tracer.Start(r.Context(), "list-entities",
			trace.WithAttributes(attribute.String("mapper", mapper)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		b, err := app.Binder(mapper)
		if err != nil {
			problems.ReportError(w, err)
			return
		}

		var columns []string
		if c := r.URL.Query().Get("columns"); c != "" {
			for _, col := range strings.Split(c, ",") {
				if col = strings.TrimSpace(col); col != "" {
					columns = append(columns, col)
				}
			}
		}

		fields := columns
		if len(fields) == 0 {
			fields = b.Fields()
		}

		err = authenticator.CheckAccess(ctx, r, mapper, fields)
		if err != nil {
			problems.ReportUnauthorizedRequest(w, err.Error())
			return
		}

		_, rows, err := b.List(ctx, columns)
		if err != nil {
			problems.ReportError(w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, tableResponse{
			TotalRecords:        len(rows),
			TotalDisplayRecords: len(rows),
			Data:                rows,
		})
	})
}

// requestValues reads the flat representation of an entity from a url encoded
// form or from a json object whose values are scalars
func requestValues(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch contentType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("unable to parse form: %w", err)
		}
		return lastValues(r.PostForm), nil
	case "application/json", "":
		return decodeFlatJSON(r.Body)
	default:
		return nil, fmt.Errorf("unsupported content type %s", contentType)
	}
}

func lastValues(form url.Values) map[string]string {
	values := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			values[k] = v[len(v)-1]
		}
	}
	return values
}

func decodeFlatJSON(body io.Reader) (map[string]string, error) {
	obj := map[string]any{}

	d := json.NewDecoder(body)
	d.UseNumber()

	if err := d.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unable to decode request payload: %w", err)
	}

	values := make(map[string]string, len(obj))

	for k, v := range obj {
		switch value := v.(type) {
		case nil:
			values[k] = ""
		case string:
			values[k] = value
		case json.Number:
			values[k] = value.String()
		case bool:
			values[k] = fmt.Sprintf("%t", value)
		case []any:
			items := make([]string, 0, len(value))
			for _, item := range value {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("only lists of strings are supported (field %s)", k)
				}
				items = append(items, s)
			}
			values[k] = typehandlers.FormatTextList(items)
		default:
			return nil, fmt.Errorf("nested objects are not supported (field %s)", k)
		}
	}

	return values, nil
}

func keysOf(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		logging.GetFromContext(ctx).Error("failed to marshal response", "err", err.Error())
		problems.NewInternalError(err.Error()).WriteResponse(w)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
