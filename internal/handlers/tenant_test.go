package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tenancy/internal/execution"
	"tenancy/internal/models"
	"tenancy/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/suite"
)

// MockAccountsService records calls and serves tenants from memory
type MockAccountsService struct {
	mutex        sync.Mutex
	tenants      map[string]*models.Tenant
	order        []string
	calls        map[string]int
	errors       map[string]error
	nextID       uint
	updated      []*models.Tenant
	initialUsers []*models.User
	userTenants  []*models.Tenant
}

func NewMockAccountsService() *MockAccountsService {
	return &MockAccountsService{
		tenants: make(map[string]*models.Tenant),
		calls:   make(map[string]int),
		errors:  make(map[string]error),
	}
}

func (m *MockAccountsService) SetError(method string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.errors[method] = err
}

func (m *MockAccountsService) GetCallCount(method string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.calls[method]
}

func (m *MockAccountsService) AddTenant(tenant *models.Tenant) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.nextID++
	tenant.ID = m.nextID
	m.tenants[tenant.Slug] = tenant
	m.order = append(m.order, tenant.Slug)
}

func (m *MockAccountsService) FindTenant(_ context.Context, slug string) (*models.Tenant, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls["FindTenant"]++
	if err := m.errors["FindTenant"]; err != nil {
		return nil, err
	}
	tenant, ok := m.tenants[slug]
	if !ok {
		return nil, services.ErrEntityDoesNotExist
	}
	return tenant, nil
}

func (m *MockAccountsService) FindAllTenants(_ context.Context, number, offset int) ([]*models.Tenant, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls["FindAllTenants"]++
	if err := m.errors["FindAllTenants"]; err != nil {
		return nil, err
	}
	result := make([]*models.Tenant, 0)
	for i := offset; i < len(m.order) && len(result) < number; i++ {
		result = append(result, m.tenants[m.order[i]])
	}
	return result, nil
}

func (m *MockAccountsService) UpdateTenant(_ context.Context, tenant *models.Tenant) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls["UpdateTenant"]++
	m.updated = append(m.updated, tenant)
	return m.errors["UpdateTenant"]
}

func (m *MockAccountsService) CreateTenant(_ context.Context, tenant *models.Tenant) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls["CreateTenant"]++
	if err := m.errors["CreateTenant"]; err != nil {
		return err
	}
	if _, exists := m.tenants[tenant.Slug]; exists {
		return services.ErrEntityAlreadyExists
	}
	m.nextID++
	tenant.ID = m.nextID
	m.tenants[tenant.Slug] = tenant
	m.order = append(m.order, tenant.Slug)
	return nil
}

func (m *MockAccountsService) CreateInitialUser(_ context.Context, tenant *models.Tenant, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls["CreateInitialUser"]++
	if err := m.errors["CreateInitialUser"]; err != nil {
		return err
	}
	m.initialUsers = append(m.initialUsers, user)
	m.userTenants = append(m.userTenants, tenant)
	return nil
}

// MockGatekeeper grants a fixed answer and counts calls
type MockGatekeeper struct {
	grant bool
	calls int
	roles []models.Role
}

func (g *MockGatekeeper) UserHasRole(_ context.Context, _ *models.User, role models.Role) bool {
	g.calls++
	g.roles = append(g.roles, role)
	return g.grant
}

type fixedSettings struct {
	activated bool
	role      models.Role
}

func (s fixedSettings) IsActivated() bool                          { return s.activated }
func (s fixedSettings) RequiredRoleForTenantCreation() models.Role { return s.role }

type TenantHandlerTestSuite struct {
	suite.Suite
	accounts   *MockAccountsService
	gatekeeper *MockGatekeeper
	settings   fixedSettings
	ctxTenant  *models.Tenant
	ctxUser    *models.User
	lastCtx    *execution.Context
}

func (s *TenantHandlerTestSuite) SetupSuite() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		services.RegisterValidations(v)
	}
}

func (s *TenantHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.accounts = NewMockAccountsService()
	s.gatekeeper = &MockGatekeeper{}
	s.settings = fixedSettings{activated: true, role: models.RoleNone}
	s.ctxTenant = nil
	s.ctxUser = nil
	s.lastCtx = nil
}

func (s *TenantHandlerTestSuite) router() *gin.Engine {
	h := NewTenantHandler(s.accounts, s.gatekeeper, s.settings)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		s.lastCtx = execution.New(s.ctxTenant, s.ctxUser)
		execution.Attach(c, s.lastCtx)
	})
	r.GET(TenantsPath, execution.Handle(h.GetAllTenants))
	r.GET(TenantsPath+"/_current", execution.Handle(h.CurrentTenant))
	r.GET(TenantsPath+"/:slug", execution.Handle(h.GetTenant))
	r.PUT(TenantsPath, execution.Handle(h.UpdateTenant))
	r.POST(TenantsPath, execution.Handle(h.CreateTenant))
	return r
}

func (s *TenantHandlerTestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *TenantHandlerTestSuite) decode(w *httptest.ResponseRecorder, dest interface{}) {
	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	s.Require().NoError(json.Unmarshal(env.Data, dest))
}

func validCreation(slug, username string) map[string]interface{} {
	return map[string]interface{}{
		"tenant": map[string]interface{}{"slug": slug, "name": "Acme"},
		"user": map[string]interface{}{
			"username": username,
			"email":    username + "@example.com",
			"password": "secret123",
		},
	}
}

// ========== getTenant ==========

func (s *TenantHandlerTestSuite) TestGetTenantFound() {
	s.accounts.AddTenant(&models.Tenant{Slug: "acme", Name: "Acme"})

	w := s.do(http.MethodGet, TenantsPath+"/acme", nil)

	s.Equal(http.StatusOK, w.Code)
	var rep TenantRepresentation
	s.decode(w, &rep)
	s.Equal("acme", rep.Slug)
	s.Equal("Acme", rep.Name)
	s.Equal(TenantsPath+"/acme", rep.Href)
}

func (s *TenantHandlerTestSuite) TestGetTenantNotFound() {
	for _, slug := range []string{"missing", "other", "a-b-c"} {
		w := s.do(http.MethodGet, TenantsPath+"/"+slug, nil)
		s.Equal(http.StatusNotFound, w.Code, slug)
	}
}

func (s *TenantHandlerTestSuite) TestGetTenantStoreFailure() {
	s.accounts.SetError("FindTenant", errors.New("connection reset"))
	w := s.do(http.MethodGet, TenantsPath+"/acme", nil)
	s.Equal(http.StatusInternalServerError, w.Code)
}

// ========== getAllTenants ==========

func (s *TenantHandlerTestSuite) TestGetAllTenantsPage() {
	for _, slug := range []string{"a", "b", "c", "d", "e"} {
		s.accounts.AddTenant(&models.Tenant{Slug: slug, Name: slug})
	}

	w := s.do(http.MethodGet, TenantsPath+"?number=2&offset=1", nil)

	s.Equal(http.StatusOK, w.Code)
	var rs struct {
		Href   string                  `json:"href"`
		Number int                     `json:"number"`
		Offset int                     `json:"offset"`
		Items  []*TenantRepresentation `json:"items"`
	}
	s.decode(w, &rs)
	s.Equal(TenantsPath+"/", rs.Href)
	s.Equal(2, rs.Number)
	s.Equal(1, rs.Offset)
	s.Require().Len(rs.Items, 2)
	s.Equal("b", rs.Items[0].Slug)
	s.Equal("c", rs.Items[1].Slug)
}

func (s *TenantHandlerTestSuite) TestGetAllTenantsDefaults() {
	s.accounts.AddTenant(&models.Tenant{Slug: "acme", Name: "Acme"})

	w := s.do(http.MethodGet, TenantsPath, nil)

	s.Equal(http.StatusOK, w.Code)
	var rs struct {
		Number int               `json:"number"`
		Offset int               `json:"offset"`
		Items  []json.RawMessage `json:"items"`
	}
	s.decode(w, &rs)
	s.Equal(50, rs.Number)
	s.Equal(0, rs.Offset)
	s.LessOrEqual(len(rs.Items), rs.Number)
}

func (s *TenantHandlerTestSuite) TestGetAllTenantsEmptyCollectionIsEmptyPage() {
	w := s.do(http.MethodGet, TenantsPath, nil)

	s.Equal(http.StatusOK, w.Code)
	var rs struct {
		Items []json.RawMessage `json:"items"`
	}
	s.decode(w, &rs)
	s.NotNil(rs.Items)
	s.Empty(rs.Items)
}

func (s *TenantHandlerTestSuite) TestGetAllTenantsNoResult() {
	s.accounts.SetError("FindAllTenants", services.ErrNoResult)
	w := s.do(http.MethodGet, TenantsPath+"?offset=100", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *TenantHandlerTestSuite) TestGetAllTenantsRejectsNegativeOffset() {
	w := s.do(http.MethodGet, TenantsPath+"?offset=-1", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(0, s.accounts.GetCallCount("FindAllTenants"))
}

// ========== currentTenant ==========

func (s *TenantHandlerTestSuite) TestCurrentTenantBothNull() {
	w := s.do(http.MethodGet, TenantsPath+"/_current", nil)

	s.Equal(http.StatusOK, w.Code)
	var pair map[string]json.RawMessage
	s.decode(w, &pair)
	s.Equal("null", string(pair["tenant"]))
	s.Equal("null", string(pair["user"]))
}

func (s *TenantHandlerTestSuite) TestCurrentTenantMirrorsContext() {
	s.ctxTenant = &models.Tenant{Slug: "acme", Name: "Acme"}
	s.ctxUser = &models.User{Username: "u1", Roles: []models.UserRole{{Role: models.RoleAdmin}}}

	w := s.do(http.MethodGet, TenantsPath+"/_current", nil)

	s.Equal(http.StatusOK, w.Code)
	var pair UserAndTenant
	s.decode(w, &pair)
	s.Require().NotNil(pair.Tenant)
	s.Require().NotNil(pair.User)
	s.Equal("acme", pair.Tenant.Slug)
	s.Equal("u1", pair.User.Username)
	s.Equal([]models.Role{models.RoleAdmin}, pair.User.Roles)
}

func (s *TenantHandlerTestSuite) TestCurrentTenantUserWithoutTenant() {
	s.ctxUser = &models.User{Username: "root", IsGlobal: true}

	w := s.do(http.MethodGet, TenantsPath+"/_current", nil)

	var pair map[string]json.RawMessage
	s.decode(w, &pair)
	s.Equal("null", string(pair["tenant"]))
	s.Contains(string(pair["user"]), `"root"`)
}

// ========== updateTenant ==========

func (s *TenantHandlerTestSuite) TestUpdateTenantForcesContextSlug() {
	s.ctxTenant = &models.Tenant{Slug: "acme"}

	w := s.do(http.MethodPut, TenantsPath, map[string]interface{}{"slug": "other", "name": "Renamed"})

	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Body.String())
	s.Require().Len(s.accounts.updated, 1)
	s.Equal("acme", s.accounts.updated[0].Slug)
	s.Equal("Renamed", s.accounts.updated[0].Name)
}

func (s *TenantHandlerTestSuite) TestUpdateTenantWithoutContextTenant() {
	w := s.do(http.MethodPut, TenantsPath, map[string]interface{}{"name": "x"})

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(0, s.accounts.GetCallCount("UpdateTenant"))
}

func (s *TenantHandlerTestSuite) TestUpdateTenantInvalidEntity() {
	s.ctxTenant = &models.Tenant{Slug: "acme"}
	s.accounts.SetError("UpdateTenant", services.NewInvalidEntityError("Invalid tenant",
		services.FieldError{Field: "name", Message: "may not be empty"}))

	w := s.do(http.MethodPut, TenantsPath, map[string]interface{}{"name": ""})

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Message string `json:"message"`
		Errors  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("Invalid tenant", body.Message)
	s.Require().Len(body.Errors, 1)
	s.Equal("name", body.Errors[0].Field)
}

func (s *TenantHandlerTestSuite) TestUpdateTenantDoesNotExist() {
	s.ctxTenant = &models.Tenant{Slug: "acme"}
	s.accounts.SetError("UpdateTenant", services.ErrEntityDoesNotExist)

	w := s.do(http.MethodPut, TenantsPath, map[string]interface{}{"name": "Acme"})

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Tenant not found\n", w.Body.String())
	s.Contains(w.Header().Get("Content-Type"), "text/plain")
}

func (s *TenantHandlerTestSuite) TestUpdateTenantMalformedBody() {
	s.ctxTenant = &models.Tenant{Slug: "acme"}
	req := httptest.NewRequest(http.MethodPut, TenantsPath, bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}

// ========== createTenant ==========

func (s *TenantHandlerTestSuite) TestCreateTenantScenario() {
	w := s.do(http.MethodPost, TenantsPath, validCreation("acme", "u1"))

	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Body.String())
	s.Equal(1, s.accounts.GetCallCount("CreateTenant"))
	s.Require().Len(s.accounts.initialUsers, 1)
	s.Equal("u1", s.accounts.initialUsers[0].Username)
	s.Require().NotNil(s.lastCtx.Tenant())
	s.Equal("acme", s.lastCtx.Tenant().Slug)
	s.Same(s.lastCtx.Tenant(), s.accounts.userTenants[0])
}

func (s *TenantHandlerTestSuite) TestCreateTenantMultitenancyDisabled() {
	for _, role := range []models.Role{models.RoleNone, models.RoleAdmin} {
		s.settings = fixedSettings{activated: false, role: role}
		s.ctxUser = &models.User{Username: "root", IsGlobal: true}
		s.gatekeeper.grant = true

		w := s.do(http.MethodPost, TenantsPath, validCreation("acme", "u1"))

		s.Equal(http.StatusForbidden, w.Code)
		s.Equal("Tenant creation is not allowed on this server\n", w.Body.String())
	}
	s.Equal(0, s.accounts.GetCallCount("CreateTenant"))
	s.Equal(0, s.gatekeeper.calls)
}

func (s *TenantHandlerTestSuite) TestCreateTenantPredicate() {
	cases := []struct {
		name      string
		role      models.Role
		user      *models.User
		grant     bool
		allowed   bool
		askedGate bool
	}{
		{"no role required anonymous", models.RoleNone, nil, false, true, false},
		{"no role required tenant user", models.RoleNone, &models.User{Username: "t"}, false, true, false},
		{"admin required anonymous", models.RoleAdmin, nil, true, false, false},
		{"admin required non global", models.RoleAdmin, &models.User{Username: "t"}, true, false, false},
		{"admin required global denied", models.RoleAdmin, &models.User{Username: "g", IsGlobal: true}, false, false, true},
		{"admin required global granted", models.RoleAdmin, &models.User{Username: "g", IsGlobal: true}, true, true, true},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.settings = fixedSettings{activated: true, role: tc.role}
			s.ctxUser = tc.user
			s.gatekeeper.grant = tc.grant

			w := s.do(http.MethodPost, TenantsPath, validCreation("acme", "u1"))

			if tc.allowed {
				s.Equal(http.StatusOK, w.Code)
				s.Equal(1, s.accounts.GetCallCount("CreateTenant"))
			} else {
				s.Equal(http.StatusForbidden, w.Code)
				s.Empty(w.Body.String())
				s.Equal(0, s.accounts.GetCallCount("CreateTenant"))
			}
			if tc.askedGate {
				s.Equal(1, s.gatekeeper.calls)
				s.Equal([]models.Role{models.RoleAdmin}, s.gatekeeper.roles)
			} else {
				s.Equal(0, s.gatekeeper.calls)
			}
		})
	}
}

func (s *TenantHandlerTestSuite) TestCreateTenantConflict() {
	s.accounts.AddTenant(&models.Tenant{Slug: "acme", Name: "Acme"})

	w := s.do(http.MethodPost, TenantsPath, validCreation("acme", "u2"))

	s.Equal(http.StatusConflict, w.Code)
	s.Equal("A tenant with this slug already exists", w.Body.String())
	s.Equal(0, s.accounts.GetCallCount("CreateInitialUser"))
}

func (s *TenantHandlerTestSuite) TestCreateTenantInvalidEntityIsCoarse() {
	s.accounts.SetError("CreateTenant", services.NewInvalidEntityError("Invalid tenant",
		services.FieldError{Field: "slug", Message: "must contain only lowercase letters, digits and dashes"}))

	w := s.do(http.MethodPost, TenantsPath, validCreation("Bad Slug", "u1"))

	s.Equal(http.StatusBadRequest, w.Code)
	s.Empty(w.Body.String())
}

func (s *TenantHandlerTestSuite) TestCreateTenantInitialUserFailureKeepsTenant() {
	s.accounts.SetError("CreateInitialUser", services.ErrEntityAlreadyExists)

	w := s.do(http.MethodPost, TenantsPath, validCreation("acme", "taken"))

	s.Equal(http.StatusConflict, w.Code)
	_, err := s.accounts.FindTenant(context.Background(), "acme")
	s.NoError(err, "tenant stays created when the initial user fails")
}

func (s *TenantHandlerTestSuite) TestCreateTenantRequiresBothParts() {
	w := s.do(http.MethodPost, TenantsPath, map[string]interface{}{
		"tenant": map[string]interface{}{"slug": "acme", "name": "Acme"},
	})

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal(0, s.accounts.GetCallCount("CreateTenant"))
}

func (s *TenantHandlerTestSuite) TestCreateTenantRejectsInvalidUserBeforeCreating() {
	cases := map[string]struct {
		user  map[string]interface{}
		field string
	}{
		"short password": {
			user:  map[string]interface{}{"username": "u1", "email": "u1@example.com", "password": "abc"},
			field: "user.password",
		},
		"username with dot": {
			user:  map[string]interface{}{"username": "u.dot", "email": "u@example.com", "password": "secret123"},
			field: "user.username",
		},
		"one letter username": {
			user:  map[string]interface{}{"username": "u", "email": "u@example.com", "password": "secret123"},
			field: "user.username",
		},
	}

	for name, tc := range cases {
		s.Run(name, func() {
			s.SetupTest()

			w := s.do(http.MethodPost, TenantsPath, map[string]interface{}{
				"tenant": map[string]interface{}{"slug": "orphan", "name": "Orphan"},
				"user":   tc.user,
			})

			s.Equal(http.StatusUnprocessableEntity, w.Code)
			var body struct {
				Errors []struct {
					Field string `json:"field"`
				} `json:"errors"`
			}
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
			s.Require().Len(body.Errors, 1)
			s.Equal(tc.field, body.Errors[0].Field)
			s.Equal(0, s.accounts.GetCallCount("CreateTenant"))
			s.Equal(0, s.accounts.GetCallCount("CreateInitialUser"))
		})
	}
}

func TestTenantHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TenantHandlerTestSuite))
}
