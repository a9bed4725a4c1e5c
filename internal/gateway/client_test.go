package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/gateway"
)

func TestDiagnose_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/agri/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile(image) error = %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "leafbytes" {
			t.Errorf("image data = %q", data)
		}
		if hdr.Filename != "leaf.jpg" {
			t.Errorf("filename = %q, want leaf.jpg", hdr.Filename)
		}
		if got := r.FormValue("language"); got != "Tamil" {
			t.Errorf("language = %q, want Tamil", got)
		}
		if _, ok := r.MultipartForm.Value["followup_question"]; ok {
			t.Error("followup_question should be omitted when empty")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"predicted_label":"Tomato___Late_blight","confidence":87,"llm_response":"Late blight detected."}`)
	}))
	defer srv.Close()

	c := gateway.New(srv.URL + "/api/agri")
	res, err := c.Diagnose(context.Background(), gateway.DiagnoseRequest{
		Image:    gateway.Image{Data: []byte("leafbytes"), Filename: "leaf.jpg", ContentType: "image/jpeg"},
		Language: "Tamil",
	})
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if res.PredictedLabel != "Tomato___Late_blight" {
		t.Errorf("PredictedLabel = %q", res.PredictedLabel)
	}
	if res.ConfidencePercent != 87 {
		t.Errorf("ConfidencePercent = %v, want 87", res.ConfidencePercent)
	}
	if res.Narrative != "Late blight detected." {
		t.Errorf("Narrative = %q", res.Narrative)
	}
}

func TestDiagnose_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := gateway.New(srv.URL).Diagnose(context.Background(), gateway.DiagnoseRequest{
		Image: gateway.Image{Data: []byte("x")},
	})
	if !errors.Is(err, gateway.ErrServer) {
		t.Fatalf("Diagnose() error = %v, want ErrServer", err)
	}
	var ge *gateway.Error
	if !errors.As(err, &ge) {
		t.Fatal("error should be *gateway.Error")
	}
	if ge.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", ge.StatusCode)
	}
	if ge.Body != "model crashed\n" {
		t.Errorf("Body = %q", ge.Body)
	}
}

func TestDiagnose_DecodeError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"missing label", `{"confidence":50,"llm_response":"hmm"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := gateway.New(srv.URL).Diagnose(context.Background(), gateway.DiagnoseRequest{
				Image: gateway.Image{Data: []byte("x")},
			})
			if !errors.Is(err, gateway.ErrDecode) {
				t.Errorf("Diagnose() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestDiagnose_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := gateway.New(srv.URL, gateway.WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.Diagnose(context.Background(), gateway.DiagnoseRequest{
		Image: gateway.Image{Data: []byte("x")},
	})
	if !errors.Is(err, gateway.ErrTimeout) {
		t.Fatalf("Diagnose() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestDiagnose_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := gateway.New(url).Diagnose(context.Background(), gateway.DiagnoseRequest{
		Image: gateway.Image{Data: []byte("x")},
	})
	if !errors.Is(err, gateway.ErrNetwork) {
		t.Errorf("Diagnose() error = %v, want ErrNetwork", err)
	}
	if gateway.KindOf(err) != gateway.ErrNetwork {
		t.Errorf("KindOf() = %v, want ErrNetwork", gateway.KindOf(err))
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path = %s, want /chat", r.URL.Path)
		}
		if got := r.FormValue("query"); got != "How do I treat blight?" {
			t.Errorf("query = %q", got)
		}
		if got := r.FormValue("language"); got != "English" {
			t.Errorf("language = %q", got)
		}
		io.WriteString(w, `{"response":"Use copper fungicide."}`)
	}))
	defer srv.Close()

	res, err := gateway.New(srv.URL).Chat(context.Background(), "How do I treat blight?", "English")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Response != "Use copper fungicide." {
		t.Errorf("Response = %q", res.Response)
	}
}

func TestHealth(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := gateway.New(srv.URL + "/api/agri")
	if c.HealthURL() != srv.URL+"/health" {
		t.Fatalf("HealthURL() = %s", c.HealthURL())
	}
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if err := c.Health(context.Background()); !errors.Is(err, gateway.ErrServer) {
		t.Errorf("Health() error = %v, want ErrServer", err)
	}
}

func TestDeriveHealthURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000/api/agri", "http://localhost:8000/health"},
		{"https://agri.example.com/api/agri/", "https://agri.example.com/health"},
		{"http://10.0.0.5:9000", "http://10.0.0.5:9000/health"},
	}
	for _, tt := range tests {
		if got := gateway.DeriveHealthURL(tt.base); got != tt.want {
			t.Errorf("DeriveHealthURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&gateway.Error{Kind: gateway.ErrNetwork, Op: "chat", Err: errors.New("dial tcp: refused")},
			"Network error: Unable to connect to the server. Please check if the backend is running."},
		{&gateway.Error{Kind: gateway.ErrTimeout, Op: "chat"},
			"Request timeout: The server took too long to respond."},
		{&gateway.Error{Kind: gateway.ErrServer, Op: "chat", StatusCode: 503, Body: "busy"},
			"HTTP error! status: 503, message: busy"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := gateway.UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
