package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var body loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abebe@example.com", body.Identifier)
		_, _ = w.Write([]byte(`{"token":"tok-123"}`))
	}))
	defer srv.Close()

	token, err := NewClient(srv.URL, time.Second).Login(context.Background(), "  abebe@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestLoginRejectsNonStringToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":42}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Login(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrEmptyToken)
}

func TestLoginUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Login(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetUserSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/u-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u-1","name":"Abebe Kebede","email":"abebe@example.com","profileUrl":"/uploads/a.jpg"}`))
	}))
	defer srv.Close()

	user, err := NewClient(srv.URL, time.Second).GetUser(context.Background(), "tok", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Abebe Kebede", user.Name)
	assert.Equal(t, "/uploads/a.jpg", user.ProfileURL)
}

func TestCreateUserMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/create", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Chaltu Gemechu", r.FormValue("name"))
		assert.Equal(t, "chaltugemechu", r.FormValue("username"))
		assert.Equal(t, "chaltu@example.com", r.FormValue("email"))
		assert.Equal(t, "Adama", r.FormValue("location"))

		file, header, err := r.FormFile("profilePic")
		require.NoError(t, err)
		defer file.Close()
		raw, _ := io.ReadAll(file)
		assert.Equal(t, "jpegbytes", string(raw))
		assert.Equal(t, "me.jpg", header.Filename)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).CreateUser(context.Background(), SignupForm{
		Name:           " Chaltu Gemechu ",
		Email:          "Chaltu@Example.com",
		Password:       "secret1",
		Location:       "Adama",
		ProfilePic:     strings.NewReader("jpegbytes"),
		ProfilePicName: "me.jpg",
	})
	require.NoError(t, err)
}

func TestCreateUserOmitsEmptyLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["location"]
		assert.False(t, present)
		_, hasFile := r.MultipartForm.File["profilePic"]
		assert.False(t, hasFile)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).CreateUser(context.Background(), SignupForm{
		Name: "Abebe", Email: "abebe@example.com", Password: "secret1",
	})
	require.NoError(t, err)
}

func TestCreateUserValidates(t *testing.T) {
	err := NewClient("http://unused", time.Second).CreateUser(context.Background(), SignupForm{Name: "x", Email: "not-an-email", Password: "secret1"})
	require.Error(t, err)
}

func TestListReportsAndStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reports":
			_, _ = w.Write([]byte(`[{"id":"r1","diseaseName":"Late Blight","location":{"latitude":9.03,"longitude":38.74},"timestamp":"2025-03-01T08:00:00Z"}]`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	reports, err := client.ListReports(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Late Blight", reports[0].DiseaseName)
	assert.InDelta(t, 38.74, reports[0].Location.Longitude, 1e-9)

	_, err = client.ListChallenges(context.Background(), "tok")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "upstream down", statusErr.Body)
}

func TestSignupUsername(t *testing.T) {
	assert.Equal(t, "abebekebede", SignupForm{Name: "  Abebe\tKebede "}.Username())
}
