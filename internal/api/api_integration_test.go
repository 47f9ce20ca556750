package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"archiwum-plikow/internal/identity"
	"archiwum-plikow/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func memberProfile(email, fullName string, unitID int64) *identity.Profile {
	var p identity.Profile
	p.Person.Email = email
	p.Person.FullName = fullName
	p.Person.ProfilePhotoURL = "https://cdn.example.org/photos/" + email + ".jpg"
	p.Person.HomeMC.ID = unitID
	p.CurrentPosition.Team.TeamType = "Marketing"
	return &p
}

func doRequest(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	testRouter.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, method, target, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return doRequest(t, method, target, token, body, "application/json")
}

// loginAs loguje świeżo wymyślonego członka i zwraca parę tokenów
func loginAs(t *testing.T, email string) TokenResponse {
	t.Helper()

	testBridge.set("upstream-"+uuid.New().String(), memberProfile(email, "Członek Testowy", 1551), nil, nil)

	rec := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: "haslo"})
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tokens))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	return tokens
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.org", prefix, uuid.New().String())
}

// setPath ustawia katalog bieżący sesji; każdy test pracuje we własnym
// katalogu, żeby nazwy wpisów się nie gryzły
func setPath(t *testing.T, token, dir string) {
	t.Helper()

	rec := doJSON(t, http.MethodPost, "/api/v1/path", token, SetPathRequest{Path: dir})
	require.Equal(t, http.StatusOK, rec.Code)
}

func uploadFile(t *testing.T, token, filename, contents string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return doRequest(t, http.MethodPost, "/api/v1/files", token, &buf, writer.FormDataContentType())
}

func TestLoginCreatesPrincipalAndCachesAvatar(t *testing.T) {
	email := uniqueEmail("login")
	loginAs(t, email)

	principal, err := apiStore.GetPrincipalByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, principal)
	require.Equal(t, "Członek Testowy", principal.DisplayName)

	sessions, err := apiStore.ListSessionsForPrincipal(context.Background(), principal.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	cached, err := testRedis.Get(fmt.Sprintf("avatar:%d", principal.ID))
	require.NoError(t, err)
	require.Contains(t, cached, email)
}

// Nieudane logowanie nie może zostawić po sobie żadnej sesji
func TestLoginInvalidCredentials(t *testing.T) {
	email := uniqueEmail("bad-creds")
	testBridge.set("", nil, identity.ErrInvalidCredentials, nil)

	rec := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: "zle"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	principal, err := apiStore.GetPrincipalByEmail(context.Background(), email)
	require.NoError(t, err)
	require.Nil(t, principal)
}

// Członek innej jednostki organizacyjnej dostaje 403 i nie zostaje zapisany
func TestLoginUnitMismatch(t *testing.T) {
	email := uniqueEmail("wrong-unit")
	testBridge.set("upstream-token", memberProfile(email, "Obcy Członek", 999), nil, nil)

	rec := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: "haslo"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	principal, err := apiStore.GetPrincipalByEmail(context.Background(), email)
	require.NoError(t, err)
	require.Nil(t, principal)
}

func TestLoginIdentityProviderUnreachable(t *testing.T) {
	testBridge.set("", nil, fmt.Errorf("connection refused"), nil)

	rec := doJSON(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: uniqueEmail("down"), Password: "haslo"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRequestWithoutTokenIsRejected(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/api/v1/files", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/files", "nie-jwt", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetPathResolvesRelativeSegments(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("nav"))

	rec := doJSON(t, http.MethodPost, "/api/v1/path", tokens.AccessToken, SetPathRequest{Path: "Dokumenty"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PathResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "/Dokumenty", resp.Path)

	// Kolejny względny segment dokleja się do bieżącego katalogu
	rec = doJSON(t, http.MethodPost, "/api/v1/path", tokens.AccessToken, SetPathRequest{Path: "2016"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "/Dokumenty/2016", resp.Path)

	rec = doJSON(t, http.MethodPost, "/api/v1/path", tokens.AccessToken, SetPathRequest{Path: ".."})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "/Dokumenty", resp.Path)
}

// Bezpieczne (tylko do odczytu) żądanie nawigacji zawsze wraca do korzenia,
// niezależnie od parametrów
func TestResetPathIgnoresParameters(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("reset"))
	setPath(t, tokens.AccessToken, "/Dokumenty/2016")

	rec := doRequest(t, http.MethodGet, "/api/v1/path?path=/Dokumenty/2016", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PathResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "/", resp.Path)
}

func TestRefreshReconcilesMirrorAndLists(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("refresh"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)
	testRemote.setListing(dir, "raport.pdf", "notatki.txt")

	rec := doRequest(t, http.MethodGet, "/api/v1/refresh", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 2)
}

func TestRefreshProviderFailure(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("refresh-fail"))
	testRemote.setFailAll(true)
	defer testRemote.setFailAll(false)

	rec := doRequest(t, http.MethodGet, "/api/v1/refresh", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListEntriesWithSearchTerm(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("search"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)
	testRemote.setListing(dir, "budzet-2026.xlsx", "budzet-2025.xlsx", "protokol.docx")

	rec := doRequest(t, http.MethodGet, "/api/v1/refresh", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/files?q=budzet", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 2)

	// Wielkość liter ma znaczenie
	rec = doRequest(t, http.MethodGet, "/api/v1/files?q=BUDZET", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Empty(t, entries)
}

func TestUploadStreamsToRemoteAndCreatesEntry(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("upload"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "nowy.txt", "zawartosc pliku")
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))
	require.Equal(t, "nowy.txt", entry.Name)
	require.Equal(t, dir, entry.Path)
	require.True(t, entry.Visible)
	require.NotNil(t, entry.Owner)
	require.Equal(t, "Członek Testowy", *entry.Owner)

	body, ok := testRemote.uploadedBody(dir + "/nowy.txt")
	require.True(t, ok)
	require.Equal(t, "zawartosc pliku", body)
}

func TestUploadDuplicateNameConflicts(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("upload-dup"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "ten-sam.txt", "pierwsza wersja")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = uploadFile(t, tokens.AccessToken, "ten-sam.txt", "druga wersja")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRenameEntry(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("rename"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "przed.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))

	rec = doJSON(t, http.MethodPost, "/api/v1/files/"+entry.ID+"/rename", tokens.AccessToken, RenameEntryRequest{Name: "po.txt"})
	require.Equal(t, http.StatusOK, rec.Code)

	var renamed models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&renamed))
	require.Equal(t, "po.txt", renamed.Name)

	moves := testRemote.moveCalls()
	require.NotEmpty(t, moves)
	last := moves[len(moves)-1]
	require.Equal(t, dir+"/przed.txt", last.From)
	require.Equal(t, dir+"/po.txt", last.To)
}

func TestRenameMissingEntry(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("rename-404"))

	rec := doJSON(t, http.MethodPost, "/api/v1/files/nie-ma-takiego/rename", tokens.AccessToken, RenameEntryRequest{Name: "cokolwiek.txt"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMoveEntry(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("move"))
	dir := "/katalog-" + uuid.New().String()
	target := "/cel-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "wedrowiec.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))

	rec = doJSON(t, http.MethodPost, "/api/v1/files/"+entry.ID+"/move", tokens.AccessToken, MoveEntryRequest{TargetPath: target})
	require.Equal(t, http.StatusOK, rec.Code)

	var moved models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&moved))
	require.Equal(t, target, moved.Path)

	// Przeniesienie w to samo miejsce jest błędem klienta
	rec = doJSON(t, http.MethodPost, "/api/v1/files/"+entry.ID+"/move", tokens.AccessToken, MoveEntryRequest{TargetPath: target})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// Usunięcie jest miękkie: wpis znika z listingu, ale zdalny obiekt i wiersz
// mirrora zostają
func TestRemoveEntryIsSoftDelete(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("remove"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "do-kosza.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))

	movesBefore := len(testRemote.moveCalls())

	rec = doRequest(t, http.MethodDelete, "/api/v1/files/"+entry.ID, tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Żadnej operacji zdalnej
	require.Len(t, testRemote.moveCalls(), movesBefore)

	hidden, err := apiStore.GetEntryByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, hidden)
	require.False(t, hidden.Visible)

	rec = doRequest(t, http.MethodGet, "/api/v1/files", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	for _, e := range entries {
		require.NotEqual(t, entry.ID, e.ID)
	}

	// Powtórne usunięcie ukrytego wpisu to 404
	rec = doRequest(t, http.MethodDelete, "/api/v1/files/"+entry.ID, tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrashListAndRestore(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("trash"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "wraca.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))

	rec = doRequest(t, http.MethodDelete, "/api/v1/files/"+entry.ID, tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/trash?limit=1000", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trashed []models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trashed))

	found := false
	for _, e := range trashed {
		if e.ID == entry.ID {
			found = true
		}
	}
	require.True(t, found)

	rec = doJSON(t, http.MethodPost, "/api/v1/trash/"+entry.ID+"/restore", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	restored, err := apiStore.GetEntryByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, restored.Visible)
}

func TestShareEntryReturnsLink(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("share"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "publiczny.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))

	rec = doRequest(t, http.MethodGet, "/api/v1/files/"+entry.ID+"/share", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var link map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
	require.Equal(t, "https://db.example.com/s/abc123", link["url"])
}

// Rotacja refresh tokenu unieważnia stary token i zachowuje katalog bieżący
func TestRefreshTokenRotationPreservesPath(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("rotate"))
	setPath(t, tokens.AccessToken, "/Dokumenty/2016")

	rec := doJSON(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rotated))
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	session, err := apiStore.GetSessionByRefreshToken(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "/Dokumenty/2016", session.CurrentPath)

	// Zużyty refresh token nie działa drugi raz
	rec = doJSON(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutTerminatesSession(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("logout"))

	rec := doRequest(t, http.MethodGet, "/api/v1/logout", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// JWT jest jeszcze ważny, ale sesja już nie istnieje
	rec = doRequest(t, http.MethodGet, "/api/v1/files", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionManagement(t *testing.T) {
	email := uniqueEmail("devices")
	first := loginAs(t, email)
	second := loginAs(t, email)

	rec := doRequest(t, http.MethodGet, "/api/v1/sessions", first.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []models.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sessions))
	require.Len(t, sessions, 2)

	// Wylogowanie ze wszystkich urządzeń unieważnia obie sesje
	rec = doJSON(t, http.MethodPost, "/api/v1/sessions/terminate_all", first.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/files", second.AccessToken, nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteSessionInvalidID(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("bad-session-id"))

	rec := doRequest(t, http.MethodDelete, "/api/v1/sessions/nie-uuid", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsJournalRecordsOperations(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("events"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "dziennik.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/events", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))

	found := false
	for _, e := range events {
		if e["event_type"] == "entry_uploaded" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGetCurrentUser(t *testing.T) {
	email := uniqueEmail("me")
	tokens := loginAs(t, email)

	rec := doRequest(t, http.MethodGet, "/api/v1/me", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	require.Equal(t, email, me["email"])
}

// Opróżnienie kosza kasuje wiersze mirrora na twardo; uruchamiane na końcu,
// bo czyści ukryte wpisy wszystkich wcześniejszych testów
func TestPurgeTrash(t *testing.T) {
	tokens := loginAs(t, uniqueEmail("purge"))
	dir := "/katalog-" + uuid.New().String()
	setPath(t, tokens.AccessToken, dir)

	rec := uploadFile(t, tokens.AccessToken, "na-zawsze.txt", "dane")
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))

	rec = doRequest(t, http.MethodDelete, "/api/v1/files/"+entry.ID, tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, http.MethodDelete, "/api/v1/trash/purge", tokens.AccessToken, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	gone, err := apiStore.GetEntryByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}
