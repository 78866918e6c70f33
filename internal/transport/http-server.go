package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarks-api/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarks-api/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarks-api/internal/service"
)

const (
	defaultPage    = 1
	defaultPerPage = 5

	msgInvalidURL = "Enter a valid URL"
	msgURLExists  = "URL already exists"
	msgNotFound   = "Item not found"
)

type (
	UserReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=12"`
	}

	TokenResp struct {
		Token string `json:"token"`
	}

	BookmarkReq struct {
		URL  string `json:"url"`
		Body string `json:"body"`
	}

	BookmarkResp struct {
		ID        uint64    `json:"id"`
		URL       string    `json:"url"`
		ShortURL  string    `json:"short_url"`
		Visits    uint64    `json:"visits"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	ListMeta struct {
		Page       int   `json:"page"`
		Pages      int   `json:"pages"`
		TotalCount int64 `json:"total_count"`
		PrevPage   *int  `json:"prev_page"`
		NextPage   *int  `json:"next_page"`
		HasNext    bool  `json:"has_next"`
		HasPrev    bool  `json:"has_prev"`
	}

	BookmarkListResp struct {
		Data []BookmarkResp `json:"data"`
		Meta ListMeta       `json:"meta"`
	}

	StatsItemResp struct {
		ID       uint64 `json:"id"`
		URL      string `json:"url"`
		ShortURL string `json:"short_url"`
		Visits   uint64 `json:"visits"`
	}

	StatsResp struct {
		Data []StatsItemResp `json:"data"`
	}

	// ErrorResp is the envelope for validation and conflict failures;
	// MessageResp is the one for missing items. Existing clients key on
	// both shapes, so they stay distinct.
	ErrorResp struct {
		Error string `json:"error"`
	}

	MessageResp struct {
		Message string `json:"message"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		auth      *service.Auth
		bookmarks *service.Bookmarks
		logger    *zap.SugaredLogger
	}
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, auth *service.Auth, bookmarks *service.Bookmarks, logger *zap.SugaredLogger) *HTTPServer {
	instance := HTTPServer{
		auth:      auth,
		bookmarks: bookmarks,
		logger:    logger,
	}

	e := instance.Router()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.ListenAddr()); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.POST("/auth/register", s.Register)
	e.POST("/auth/login", s.Login)

	bookmarkG := e.Group("/api/v1/bookmarks")
	bookmarkG.GET("", s.BookmarkList)
	bookmarkG.GET("/", s.BookmarkList)
	bookmarkG.POST("", s.BookmarkCreate)
	bookmarkG.POST("/", s.BookmarkCreate)
	bookmarkG.GET("/stats", s.BookmarkStats)
	bookmarkG.GET("/:id", s.BookmarkGet)
	bookmarkG.PUT("/:id", s.BookmarkUpdate)
	bookmarkG.PATCH("/:id", s.BookmarkUpdate)
	bookmarkG.DELETE("/:id", s.BookmarkDelete)

	e.GET("/r/:code", s.Resolve)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyDump(func(c echo.Context, reqBody, resBody []byte) {
		if len(reqBody) == 0 {
			return
		}
		s.logger.Debugw("request body", "path", c.Path(), "body", string(censorBody(reqBody)))
	}))

	e.Use(s.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	return e
}

func (s *HTTPServer) Register(c echo.Context) error {
	u := UserReq{}
	if err := BindAndValidate(c, &u); err != nil {
		return err
	}

	token, err := s.auth.Register(u.Email, u.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) Login(c echo.Context) error {
	u := UserReq{}
	if err := BindAndValidate(c, &u); err != nil {
		return err
	}

	token, err := s.auth.Login(u.Email, u.Password)
	if err != nil {
		if errors.Cause(err) == service.ErrLoginUserNotFound || errors.Cause(err) == service.ErrLoginPasswordDoesNotMatch {
			return c.JSON(http.StatusUnauthorized, ErrorResp{Error: "invalid credentials"})
		}
		return err
	}
	return c.JSON(http.StatusOK, &TokenResp{Token: token})
}

func (s *HTTPServer) BookmarkList(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	page := queryInt(c, "page", defaultPage)
	perPage := queryInt(c, "per_page", defaultPerPage)

	result, err := s.bookmarks.List(user.ID, page, perPage)
	if err != nil {
		return err
	}

	data := make([]BookmarkResp, len(result.Items))
	for i := range result.Items {
		data[i] = toBookmarkResp(&result.Items[i])
	}
	return c.JSON(http.StatusOK, BookmarkListResp{
		Data: data,
		Meta: ListMeta{
			Page:       result.Page,
			Pages:      result.Pages,
			TotalCount: result.TotalCount,
			PrevPage:   result.PrevPage,
			NextPage:   result.NextPage,
			HasNext:    result.HasNext,
			HasPrev:    result.HasPrev,
		},
	})
}

func (s *HTTPServer) BookmarkCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := BookmarkReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	model, err := s.bookmarks.Create(user.ID, req.URL, req.Body)
	if err != nil {
		return s.bookmarkError(c, err)
	}

	return c.JSON(http.StatusCreated, toBookmarkResp(model))
}

func (s *HTTPServer) BookmarkGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	model, err := s.bookmarks.Get(user.ID, id)
	if err != nil {
		return s.bookmarkError(c, err)
	}

	return c.JSON(http.StatusOK, toBookmarkResp(model))
}

func (s *HTTPServer) BookmarkUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := BookmarkReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	model, err := s.bookmarks.Update(user.ID, id, req.URL, req.Body)
	if err != nil {
		return s.bookmarkError(c, err)
	}

	return c.JSON(http.StatusOK, toBookmarkResp(model))
}

func (s *HTTPServer) BookmarkDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.bookmarks.Delete(user.ID, id); err != nil {
		return s.bookmarkError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) BookmarkStats(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	stats, err := s.bookmarks.Stats(user.ID)
	if err != nil {
		return err
	}

	data := make([]StatsItemResp, len(stats))
	for i := range stats {
		data[i] = StatsItemResp{
			ID:       stats[i].ID,
			URL:      stats[i].URL,
			ShortURL: stats[i].ShortURL,
			Visits:   stats[i].Visits,
		}
	}
	return c.JSON(http.StatusOK, StatsResp{Data: data})
}

func (s *HTTPServer) Resolve(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path param 'code'")
	}

	model, err := s.bookmarks.ResolveVisit(code)
	if err != nil {
		if errors.Cause(err) == service.ErrNotFound {
			return c.JSON(http.StatusNotFound, MessageResp{Message: msgNotFound})
		}
		return err
	}

	return c.Redirect(http.StatusFound, model.URL)
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	public := map[string]bool{
		"/auth/register": true,
		"/auth/login":    true,
		"/ping":          true,
		"/r/:code":       true,
	}
	return func(c echo.Context) error {
		if public[c.Path()] {
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token := ""
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("bearer "):])
		}
		if token == "" {
			return c.NoContent(http.StatusUnauthorized)
		}

		user, err := s.auth.UserByToken(token)
		if err != nil {
			s.logger.Error(errors.Wrap(err, "find user in db"))
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", user)
		return next(c)
	}
}

func (s *HTTPServer) bookmarkError(c echo.Context, err error) error {
	switch errors.Cause(err) {
	case service.ErrInvalidURL:
		return c.JSON(http.StatusBadRequest, ErrorResp{Error: msgInvalidURL})
	case service.ErrURLExists:
		return c.JSON(http.StatusConflict, ErrorResp{Error: msgURLExists})
	case service.ErrNotFound:
		return c.JSON(http.StatusNotFound, MessageResp{Message: msgNotFound})
	}
	return err
}

func toBookmarkResp(m *db.Bookmark) BookmarkResp {
	return BookmarkResp{
		ID:        m.ID,
		URL:       m.URL,
		ShortURL:  m.ShortURL,
		Visits:    m.Visits,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func censorBody(b []byte) []byte {
	m := map[string]interface{}{}
	if err := json.Unmarshal(b, &m); err != nil {
		return b
	}
	if _, ok := m["password"]; ok {
		m["password"] = "$censored"
	}
	out, err := json.Marshal(m)
	if err != nil {
		return b
	}
	return out
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, ok := c.Get("user").(*db.User)
	if !ok || user == nil {
		return nil, errors.New("no user found in context")
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return vv, nil
}
