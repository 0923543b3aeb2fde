package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/usecase"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidPayload = errors.New("invalid request payload")
	errNotAnObject    = errors.New("request body must be a JSON object")
)

type BalanceHandler struct {
	usecase usecase.BalanceUsecase
	log     logger.Logger
}

type MessageResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func NewBalanceHandler(usecase usecase.BalanceUsecase, log logger.Logger) *BalanceHandler {
	return &BalanceHandler{usecase: usecase, log: log}
}

func (h *BalanceHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/{denomination:rub|eur|usd}/get", h.GetDenomination).Methods(http.MethodGet)
	router.HandleFunc("/amount/get", h.GetAmount).Methods(http.MethodGet)
	router.HandleFunc("/amount/set", h.SetAmount).Methods(http.MethodPost)
	router.HandleFunc("/modify", h.ModifyAmount).Methods(http.MethodPost)
}

func (h *BalanceHandler) GetDenomination(w http.ResponseWriter, r *http.Request) {
	d, err := models.ParseDenomination(mux.Vars(r)["denomination"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	text := fmt.Sprintf("%s: %s", d, h.usecase.ReadBalance().Get(d).StringFixed(models.Precision))
	h.log.Debug(text)
	respondWithText(w, http.StatusOK, text)
}

func (h *BalanceHandler) GetAmount(w http.ResponseWriter, r *http.Request) {
	total, err := h.usecase.ComputeTotal()
	if err != nil {
		h.handleOperationError(w, "amount/get", err)
		return
	}

	var b strings.Builder
	for _, d := range models.Denominations {
		fmt.Fprintf(&b, "%s: %s\n", d, total.Balance.Get(d).StringFixed(models.Precision))
	}
	fmt.Fprintf(&b, "sum: %s rub / %s eur / %s usd",
		total.RUB.StringFixed(models.Precision), total.EUR.String(), total.USD.String())

	h.log.Debug("Total computed",
		logger.StringField("balance", total.Balance.String()),
		logger.StringField("rate", total.Rate.String()),
		logger.StringField("sum_rub", total.RUB.String()),
	)
	respondWithText(w, http.StatusOK, b.String())
}

// SetAmount replaces every balance field present in the request body.
func (h *BalanceHandler) SetAmount(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "amount/set", h.usecase.ReplaceBalance)
}

// ModifyAmount adds the request body to the balance field by field.
func (h *BalanceHandler) ModifyAmount(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "modify", h.usecase.AccumulateBalance)
}

func (h *BalanceHandler) mutate(w http.ResponseWriter, r *http.Request, operation string, apply func(src any) error) {
	values, err := h.decodeRequest(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := apply(values); err != nil {
		h.handleOperationError(w, operation, err)
		return
	}

	h.log.Debug("Balance request applied",
		logger.StringField("operation", operation),
		logger.AnyField("request", values),
		logger.StringField("balance", h.usecase.ReadBalance().String()),
	)
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
}

func (h *BalanceHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var body any
	if err := decoder.Decode(&body); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		return nil, errInvalidPayload
	}

	values, ok := body.(map[string]any)
	if !ok {
		h.log.Warn("Request body is not an object", logger.StringField("type", fmt.Sprintf("%T", body)))
		return nil, errNotAnObject
	}
	return values, nil
}

func (h *BalanceHandler) handleOperationError(w http.ResponseWriter, operation string, err error) {
	var verrs models.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		h.log.Warn("Invalid values",
			logger.StringField("operation", operation),
			logger.ErrorField("error", err),
		)
		respondWithJSON(w, http.StatusBadRequest, MessageResponse{
			Message: "invalid values",
			Errors:  verrs.Fields(),
		})
	case errors.Is(err, models.ErrMappingType):
		respondWithError(w, http.StatusBadRequest, errNotAnObject.Error())
	case errors.Is(err, usecase.ErrRatesUnavailable):
		h.log.Warn("Rates unavailable", logger.StringField("operation", operation))
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("Failed to process request",
			logger.StringField("operation", operation),
			logger.ErrorField("error", err),
		)
		respondWithError(w, http.StatusInternalServerError, "failed to process request")
	}
}

func respondWithText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(text))
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, MessageResponse{Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, body MessageResponse) {
	response, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
