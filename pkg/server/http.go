package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/erain9/orderlab/pkg/logging"
	"github.com/erain9/orderlab/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const (
	// sortPreviewSize is the number of sorted orders returned by the sort routes
	sortPreviewSize = 10
	maxFormMemory   = 1 << 20

	// DefaultMaxGenerate caps a single generate request
	DefaultMaxGenerate = 100_000
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"micros":   func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	"multiply": func(a, b int) int { return a * b },
}).ParseFS(templateFS, "templates/*.html"))

// HTTPServer exposes a DeskService over HTTP
type HTTPServer struct {
	service     *DeskService
	defaultDesk string
	maxGenerate int
	validate    *validator.Validate
	router      *mux.Router
}

// NewHTTPServer builds the router. Routes without a /desks/{desk} prefix
// act on defaultDesk.
func NewHTTPServer(service *DeskService, defaultDesk string) *HTTPServer {
	s := &HTTPServer{
		service:     service,
		defaultDesk: defaultDesk,
		maxGenerate: DefaultMaxGenerate,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

// SetMaxGenerate changes the largest count accepted by the generate routes
func (s *HTTPServer) SetMaxGenerate(n int) {
	if n > 0 {
		s.maxGenerate = n
	}
}

// Handler returns the root handler with request logging applied
func (s *HTTPServer) Handler() http.Handler {
	return logging.HTTPMiddleware(s.router)
}

func (s *HTTPServer) routes() {
	r := s.router

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/desks", s.handleListDesks).Methods(http.MethodGet)
	r.HandleFunc("/desks", s.handleCreateDesk).Methods(http.MethodPost)
	r.HandleFunc("/desks/{desk}", s.handleDeleteDesk).Methods(http.MethodDelete)

	for _, prefix := range []string{"", "/desks/{desk}"} {
		r.HandleFunc(prefix+"/orders/generate", s.handleGenerate).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/orders", s.handleAddOrder).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/orders", s.handleListOrders).Methods(http.MethodGet)
		r.HandleFunc(prefix+"/search/linear", s.handleLinearSearch).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/search/binary", s.handleBinarySearch).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/sort/bubble", s.sortHandler(core.AlgorithmBubbleSort)).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/sort/insertion", s.sortHandler(core.AlgorithmInsertionSort)).Methods(http.MethodPost)
	}

	r.HandleFunc("/compare", s.handleCompare).Methods(http.MethodGet)
	r.HandleFunc("/compare/view", s.handleCompareView).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
}

func (s *HTTPServer) deskName(r *http.Request) string {
	if name, ok := mux.Vars(r)["desk"]; ok {
		return name
	}
	return s.defaultDesk
}

// Request bodies. Integer fields are pointers so that a missing value and
// zero can be told apart.

type createDeskRequest struct {
	Name    string            `json:"name" validate:"required"`
	Backend string            `json:"backend" validate:"omitempty,oneof=memory redis postgres"`
	Options map[string]string `json:"options"`
}

func (req *createDeskRequest) fromForm(form url.Values) error {
	req.Name = form.Get("name")
	req.Backend = form.Get("backend")
	req.Options = make(map[string]string)
	for key := range form {
		if option, ok := strings.CutPrefix(key, "option."); ok {
			req.Options[option] = form.Get(key)
		}
	}
	return nil
}

type generateRequest struct {
	Count *int `json:"count" validate:"required,min=0"`
}

func (req *generateRequest) fromForm(form url.Values) (err error) {
	req.Count, err = formInt(form, "count")
	return err
}

type addOrderRequest struct {
	ID        *int   `json:"id" validate:"required"`
	Priority  *int   `json:"priority" validate:"required"`
	CourierID *int   `json:"courier_id"`
	Address   string `json:"address"`
}

func (req *addOrderRequest) fromForm(form url.Values) (err error) {
	if req.ID, err = formInt(form, "id"); err != nil {
		return err
	}
	if req.Priority, err = formInt(form, "priority"); err != nil {
		return err
	}
	if req.CourierID, err = formInt(form, "courier_id"); err != nil {
		return err
	}
	req.Address = form.Get("address")
	return nil
}

type linearSearchRequest struct {
	CourierID *int `json:"courier_id" validate:"required"`
}

func (req *linearSearchRequest) fromForm(form url.Values) (err error) {
	req.CourierID, err = formInt(form, "courier_id")
	return err
}

type binarySearchRequest struct {
	OrderID *int `json:"order_id" validate:"required"`
}

func (req *binarySearchRequest) fromForm(form url.Values) (err error) {
	req.OrderID, err = formInt(form, "order_id")
	return err
}

// Response bodies

type errorResponse struct {
	Error string `json:"error"`
}

type generateResponse struct {
	Message     string `json:"message"`
	TotalOrders int    `json:"total_orders"`
}

type ordersResponse struct {
	Orders      []*core.Order `json:"orders"`
	TotalOrders int           `json:"total_orders"`
}

type linearSearchResponse struct {
	Results      []*core.Order `json:"results"`
	Steps        int           `json:"steps"`
	TotalResults int           `json:"total_results"`
}

type binarySearchResponse struct {
	Result *core.Order `json:"result"`
	Found  bool        `json:"found"`
	Steps  int         `json:"steps"`
}

type sortResponse struct {
	SortedOrders []*core.Order `json:"sorted_orders"`
	Steps        int           `json:"steps"`
	TotalOrders  int           `json:"total_orders"`
}

type desksResponse struct {
	Desks []*DeskInfo `json:"desks"`
}

type formDecoder interface {
	fromForm(url.Values) error
}

func formInt(form url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidArgument, key)
	}
	return &v, nil
}

// decode reads a JSON or form encoded body into req and validates it. An
// empty body decodes to the zero request.
func (s *HTTPServer) decode(r *http.Request, req formDecoder) error {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
		}
		if err := req.fromForm(r.PostForm); err != nil {
			return err
		}
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
		}
		if err := req.fromForm(r.PostForm); err != nil {
			return err
		}
	default:
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: invalid JSON body: %v", core.ErrInvalidArgument, err)
			}
		}
	}

	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidArgument, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "oneof":
			msgs = append(msgs, field+" must be one of "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusForError maps domain errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrStorage):
		// corrupt stored orders also wrap the order validation errors
		return http.StatusInternalServerError
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidID),
		errors.Is(err, core.ErrInvalidPriority),
		errors.Is(err, core.ErrInvalidCourier),
		errors.Is(err, ErrUnsupportedBackend):
		return http.StatusBadRequest
	case errors.Is(err, ErrDeskNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDeskExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		DefaultDesk string
		Desks       []*DeskInfo
	}{
		DefaultDesk: s.defaultDesk,
		Desks:       s.service.Manager().ListDesks(r.Context()),
	}
	s.render(w, r, "index.html", data)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListDesks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, desksResponse{Desks: s.service.Manager().ListDesks(r.Context())})
}

func (s *HTTPServer) handleCreateDesk(w http.ResponseWriter, r *http.Request) {
	var req createDeskRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	info, err := s.service.Manager().CreateDesk(r.Context(), req.Name, req.Backend, req.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *HTTPServer) handleDeleteDesk(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Manager().DeleteDesk(r.Context(), s.deskName(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if *req.Count > s.maxGenerate {
		writeError(w, r, fmt.Errorf("%w: count %d exceeds the limit of %d", core.ErrInvalidArgument, *req.Count, s.maxGenerate))
		return
	}

	total, err := s.service.Generate(r.Context(), s.deskName(r), *req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Message:     fmt.Sprintf("Generated %d orders", *req.Count),
		TotalOrders: total,
	})
}

func (s *HTTPServer) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var req addOrderRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		order *core.Order
		err   error
	)
	if req.CourierID != nil {
		order, err = core.NewAssignedOrder(*req.ID, core.Priority(*req.Priority), *req.CourierID, req.Address)
	} else {
		order, err = core.NewOrder(*req.ID, core.Priority(*req.Priority), req.Address)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.service.AddOrder(r.Context(), s.deskName(r), order); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.service.Orders(r.Context(), s.deskName(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*core.Order{}
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: orders, TotalOrders: len(orders)})
}

func (s *HTTPServer) handleLinearSearch(w http.ResponseWriter, r *http.Request) {
	var req linearSearchRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.service.Run(r.Context(), s.deskName(r), core.AlgorithmLinearSearch, *req.CourierID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, linearSearchResponse{
		Results:      outcome.Orders,
		Steps:        outcome.Steps,
		TotalResults: outcome.Matches(),
	})
}

func (s *HTTPServer) handleBinarySearch(w http.ResponseWriter, r *http.Request) {
	var req binarySearchRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.service.Run(r.Context(), s.deskName(r), core.AlgorithmBinarySearch, *req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, binarySearchResponse{
		Result: outcome.Order,
		Found:  outcome.Found(),
		Steps:  outcome.Steps,
	})
}

func (s *HTTPServer) sortHandler(algorithm core.Algorithm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := s.service.Run(r.Context(), s.deskName(r), algorithm, 0)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, sortResponse{
			SortedOrders: outcome.Preview(sortPreviewSize),
			Steps:        outcome.Steps,
			TotalOrders:  outcome.Collection,
		})
	}
}

func (s *HTTPServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Compare(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleCompareView(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Compare(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.render(w, r, "compare.html", newCompareView(report))
}

func (s *HTTPServer) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
	}
}
