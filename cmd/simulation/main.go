package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/fatih/color"
)

var baseURL = envOr("SIMULATION_BASE_URL", "http://localhost:3000/api")

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type formSession struct {
	Id            string            `json:"id"`
	Status        string            `json:"status"`
	Failure       string            `json:"failure"`
	Fields        map[string]string `json:"fields"`
	VisibleErrors map[string]struct {
		Message string `json:"message"`
	} `json:"visible_errors"`
	Notice     string          `json:"notice"`
	Navigation json.RawMessage `json:"navigation"`
}

type detectionSession struct {
	Id    string `json:"id"`
	State struct {
		Source      string          `json:"source"`
		SourceError string          `json:"source_error"`
		Detection   string          `json:"detection"`
		Results     json.RawMessage `json:"results"`
		Report      json.RawMessage `json:"report"`
	} `json:"state"`
}

func main() {
	color.Cyan("🚀 Compliance session walk-through against %s\n", baseURL)

	scenarioA()
	scenarioB()
	scenarioC()
	scenarioD()
}

// scenarioA: signup with mismatched passwords is rejected locally.
func scenarioA() {
	color.Yellow("\n[A] Signup with mismatched passwords")
	var f formSession
	if !call("POST", "/forms", map[string]any{"variant": "signup"}, &f) {
		return
	}
	fill(f.Id, map[string]string{
		"fullName":        "Jane Rider",
		"email":           "jane@example.com",
		"password":        "secret1",
		"confirmPassword": "secret2",
	})
	call("POST", "/forms/"+f.Id+"/submit", nil, &f)
	fmt.Printf("status=%s failure=%s confirmPassword=%q\n", f.Status, f.Failure, f.VisibleErrors["confirmPassword"].Message)
}

// scenarioB: a valid login submits and navigates to the dashboard.
func scenarioB() {
	color.Yellow("\n[B] Valid login")
	var f formSession
	if !call("POST", "/forms", map[string]any{"variant": "login"}, &f) {
		return
	}
	fill(f.Id, map[string]string{"email": "jane@example.com", "password": "secret1"})
	call("POST", "/forms/"+f.Id+"/submit", nil, &f)
	fmt.Printf("status=%s\n", f.Status)

	for i := 0; i < 50 && f.Status == "submitting"; i++ {
		time.Sleep(100 * time.Millisecond)
		call("GET", "/forms/"+f.Id, nil, &f)
	}
	fmt.Printf("status=%s navigation=%s\n", f.Status, f.Navigation)
}

// scenarioC: a PDF is not accepted for upload detection.
func scenarioC() {
	color.Yellow("\n[C] Upload a PDF")
	var d detectionSession
	if !call("POST", "/detections", map[string]any{"kind": "upload"}, &d) {
		return
	}
	upload(d.Id, "manual.pdf", "application/pdf", []byte("%PDF-1.4"), &d)
	fmt.Printf("source=%s error=%q\n", d.State.Source, d.State.SourceError)
}

// scenarioD: release during a running live detection discards the late result.
func scenarioD() {
	color.Yellow("\n[D] Release while live detection runs")
	var d detectionSession
	if !call("POST", "/detections", map[string]any{"kind": "live"}, &d) {
		return
	}
	if !call("POST", "/detections/"+d.Id+"/camera", nil, &d) {
		return
	}
	call("POST", "/detections/"+d.Id+"/run", nil, &d)
	fmt.Printf("detection=%s\n", d.State.Detection)
	call("POST", "/detections/"+d.Id+"/release", nil, &d)

	time.Sleep(3 * time.Second)
	call("GET", "/detections/"+d.Id, nil, &d)
	fmt.Printf("source=%s detection=%s results=%s\n", d.State.Source, d.State.Detection, d.State.Results)
	call("DELETE", "/detections/"+d.Id, nil, nil)
}

func fill(id string, values map[string]string) {
	for name, v := range values {
		call("PUT", "/forms/"+id+"/fields/"+name, map[string]string{"value": v}, nil)
	}
}

func call(method, path string, body any, out any) bool {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, baseURL+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(req, out)
}

func upload(id, filename, contentType string, data []byte, out any) bool {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, _ := w.CreatePart(header)
	part.Write(data)
	w.Close()

	req, _ := http.NewRequest("POST", baseURL+"/detections/"+id+"/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return send(req, out)
}

func send(req *http.Request, out any) bool {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		color.Red("Failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		color.Red("Failed to decode response: %v", err)
		return false
	}
	if resp.StatusCode >= 400 {
		color.Red("%s %s -> %s: %s", req.Method, req.URL.Path, resp.Status, env.Message)
	} else {
		color.Green("%s %s -> %s", req.Method, req.URL.Path, resp.Status)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			color.Red("Failed to decode data: %v", err)
			return false
		}
	}
	return resp.StatusCode < 400
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
