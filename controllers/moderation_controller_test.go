package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/tests/testutil"
)

func TestPublicTailors(t *testing.T) {
	f := newAPIFixture(t)
	stitch := testutil.CreateTailor(t, f.db, "Stitch House", true)
	testutil.CreateTailor(t, f.db, "Fresh Threads", false)

	w, response := f.do(t, models.Actor{}, http.MethodGet, "/api/v1/tailors", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	tailors := dataList(t, response)
	require.Len(t, tailors, 1)
	assert.Equal(t, float64(stitch.ID), tailors[0].(map[string]interface{})["id"])
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newAPIFixture(t)
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	tailor := testutil.CreateTailor(t, f.db, "Stitch House", false)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/admin/tailors"},
		{http.MethodGet, "/api/v1/admin/customers"},
		{http.MethodPost, "/api/v1/admin/tailors/" + uintString(tailor.ID) + "/verify"},
		{http.MethodGet, "/api/v1/admin/messages"},
		{http.MethodGet, "/api/v1/admin/activity"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w, response := f.do(t, models.Actor{ID: tailor.ID, Role: models.RoleTailor}, p.method, p.path, nil)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "FORBIDDEN", errorCode(t, response))

			w, response = f.do(t, models.Actor{ID: customer.ID, Role: models.RoleCustomer}, p.method, p.path, nil)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "FORBIDDEN", errorCode(t, response))

			w, _ = f.do(t, models.Actor{}, p.method, p.path, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestTailorModerationRoutes(t *testing.T) {
	f := newAPIFixture(t)
	tailor := testutil.CreateTailor(t, f.db, "Stitch House", false)
	moderator := models.Actor{ID: 3, Role: models.RoleModerator}
	admin := models.Actor{ID: 2, Role: models.RoleAdmin}
	tailorPath := "/api/v1/admin/tailors/" + uintString(tailor.ID)

	w, response := f.do(t, moderator, http.MethodPost, tailorPath+"/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataObject(t, response)["is_verified"])

	w, response = f.do(t, moderator, http.MethodGet, "/api/v1/admin/tailors?filter=verified", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataList(t, response), 1)
	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, "Verified", meta["label"])

	w, response = f.do(t, moderator, http.MethodGet, "/api/v1/admin/tailors?filter=popular", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, response))

	w, response = f.do(t, moderator, http.MethodPost, tailorPath+"/block", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, response))

	w, response = f.do(t, admin, http.MethodPost, tailorPath+"/block", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataObject(t, response)["blocked"])

	var stored models.Tailor
	require.NoError(t, f.db.First(&stored, tailor.ID).Error)
	assert.True(t, stored.IsBlocked)

	w, _ = f.do(t, admin, http.MethodPost, tailorPath+"/unblock", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, response = f.do(t, admin, http.MethodPost, tailorPath+"/unverify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataObject(t, response)["is_verified"])

	w, response = f.do(t, admin, http.MethodPost, "/api/v1/admin/tailors/9999/verify", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, response))
}

func TestCustomerModerationRoutes(t *testing.T) {
	f := newAPIFixture(t)
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	admin := models.Actor{ID: 2, Role: models.RoleAdmin}

	w, _ := f.do(t, admin, http.MethodPost, "/api/v1/admin/customers/"+uintString(customer.ID)+"/block", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, response := f.do(t, admin, http.MethodGet, "/api/v1/admin/customers?filter=blocked", nil)
	require.Equal(t, http.StatusOK, w.Code)
	customers := dataList(t, response)
	require.Len(t, customers, 1)
	assert.Equal(t, float64(customer.ID), customers[0].(map[string]interface{})["id"])

	w, response = f.do(t, admin, http.MethodGet, "/api/v1/admin/customers?filter=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dataList(t, response))
}

func TestAdminAccountRoutes(t *testing.T) {
	f := newAPIFixture(t)
	root := testutil.CreateAdmin(t, f.db, "root", models.RoleSuperAdmin)
	staff := testutil.CreateAdmin(t, f.db, "staff", models.RoleModerator)
	rootActor := models.Actor{ID: root.ID, Role: models.RoleSuperAdmin}
	rootPath := "/api/v1/admin/admins/" + uintString(root.ID)
	staffPath := "/api/v1/admin/admins/" + uintString(staff.ID)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"cannot toggle self", http.MethodPost, rootPath + "/toggle_status", http.StatusForbidden, "SELF_ACTION_FORBIDDEN"},
		{"cannot block self", http.MethodPost, rootPath + "/block", http.StatusForbidden, "SELF_ACTION_FORBIDDEN"},
		{"cannot delete self", http.MethodDelete, rootPath, http.StatusForbidden, "SELF_ACTION_FORBIDDEN"},
		{"malformed id", http.MethodDelete, "/api/v1/admin/admins/x", http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := f.do(t, rootActor, tt.method, tt.path, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, response))
		})
	}

	w, response := f.do(t, rootActor, http.MethodPost, staffPath+"/toggle_status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataObject(t, response)["is_active"])

	w, response = f.do(t, models.Actor{ID: staff.ID, Role: models.RoleModerator}, http.MethodDelete, rootPath, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, response))

	w, _ = f.do(t, rootActor, http.MethodDelete, staffPath, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, response = f.do(t, rootActor, http.MethodGet, "/api/v1/admin/admins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	admins := dataList(t, response)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].(map[string]interface{})["username"])
	roles := response["meta"].(map[string]interface{})["roles"].(map[string]interface{})
	assert.Equal(t, "Super Admin", roles["super_admin"])
}
