// transport/http содержит HTTP-поверхность сервиса аккаунтов.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service)
// в HTTP. Вся валидация и бизнес-логика находятся в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Ошибки сервиса явно транслируются в статусы:
//   - ErrInvalidEmail/ErrWeakPassword -> 400 Bad Request;
//   - ErrEmailTaken -> 409 Conflict;
//   - ErrInvalidCredentials -> 401 Unauthorized;
//   - ErrMissingToken/ErrInvalidToken/ErrTokenExpired -> 401 Unauthorized;
//   - иные ошибки -> 500 c единым безопасным сообщением.
//
// Доставка токенов: помимо JSON-ответа пара кладётся в HttpOnly-cookie
// ACCESS_TOKEN/REFRESH_TOKEN (Secure, SameSite=Strict, срок = сроку токена).
//
// Безопасность:
//   - Для 500 наружу не утекают детали внутренних ошибок; подробности
//     попадают в логи через middleware и контекстный логгер.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avelichko/accounts-service/internal/models"
	"github.com/avelichko/accounts-service/internal/pkg/log"
	"github.com/avelichko/accounts-service/internal/service"
)

const (
	accessTokenCookie  = "ACCESS_TOKEN"
	refreshTokenCookie = "REFRESH_TOKEN"
)

// AccountHandler реализует HTTP-эндпоинты аккаунтов поверх сервисного слоя.
type AccountHandler struct {
	service *service.Service
}

// NewAccountHandler создаёт обработчик поверх сервисного слоя.
func NewAccountHandler(service *service.Service) *AccountHandler {
	return &AccountHandler{service: service}
}

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	UserID           string `json:"userId"`
	AccessToken      string `json:"accessToken"`
	AccessExpiresAt  int64  `json:"accessExpiresAt"`
	RefreshToken     string `json:"refreshToken"`
	RefreshExpiresAt int64  `json:"refreshExpiresAt"`
}

type meResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Register регистрирует аккаунт. Токены не выдаются: вход — отдельный вызов.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uid, err := h.service.RegisterUser(r.Context(), req.Email, req.FirstName, req.LastName, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{UserID: uid.String()})
}

// Login аутентифицирует пользователя и выдаёт новую пару токенов.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, uid, err := h.service.LoginUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, tokenPairResponse{
		UserID:           uid.String(),
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	})
}

// Refresh обменивает refresh-токен на новую пару.
// Токен берётся из cookie REFRESH_TOKEN, при её отсутствии — из JSON-тела;
// отсутствие токена целиком отдаёт сервис как ErrMissingToken.
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var presented string
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		presented = c.Value
	} else if r.Body != nil {
		var req refreshRequest
		// Тело опционально: его отсутствие — это просто пустой токен.
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, uid, err := h.service.RefreshSession(r.Context(), presented)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, tokenPairResponse{
		UserID:           uid.String(),
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	})
}

// Me возвращает данные субъекта access-токена (за auth-middleware).
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.Account(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.FullName(),
	})
}

// setAuthCookies кладёт пару токенов в HttpOnly-cookie со сроком жизни,
// равным сроку соответствующего токена.
func setAuthCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-статус.
func (h *AccountHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, unwrapSentinel(err))
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, unwrapSentinel(err))
	case errors.Is(err, service.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, unwrapSentinel(err))
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrMissingToken),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, unwrapSentinel(err))
	default:
		log.From(r.Context()).Error("internal_error",
			slog.String("err", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// unwrapSentinel возвращает текст именованной ошибки без op-префиксов.
func unwrapSentinel(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
