package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/izahai/SceneFit/internal/audio"
)

const maxUploadBytes = 64 << 20

// Response modes exercise the tolerant transcript parser
const (
	modeJSON   = "json"   // {"transcript": "..."}
	modeBOM    = "bom"    // BOM + junk around the JSON object
	modePlain  = "plain"  // bare text body
	modeQuoted = "quoted" // text wrapped in one layer of quotes
	modeEmpty  = "empty"  // {"transcript": ""}
	modeError  = "error"  // HTTP 500
)

type handler struct {
	mode       string
	transcript string
	logger     *slog.Logger
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Warn("Bad multipart body", slog.String("request_id", requestID), slog.String("error", err.Error()))
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Missing audio part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusInternalServerError)
		return
	}

	info, err := audio.ReadWAVInfo(data)
	if err != nil {
		h.logger.Warn("Rejected upload",
			slog.String("request_id", requestID),
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.logger.Info("Transcription request received",
		slog.String("request_id", requestID),
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int("bytes", len(data)),
		slog.Int("sample_rate", int(info.SampleRate)),
		slog.Int("channels", int(info.Channels)),
		slog.Duration("duration", info.Duration),
		slog.String("mode", h.mode),
	)

	text := h.transcript
	if text == "" {
		text = fmt.Sprintf("received %d samples (%s) at %d Hz", info.NumSamples, info.Duration, info.SampleRate)
	}

	switch h.mode {
	case modeError:
		http.Error(w, "transcription backend unavailable", http.StatusInternalServerError)
	case modePlain:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text+"\n")
	case modeQuoted:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, `"`+text+`"`)
	case modeEmpty:
		writeTranscript(w, "", "", "")
	case modeBOM:
		writeTranscript(w, text, "\uFEFF\u200Bjunk ", " trailing")
	default:
		writeTranscript(w, text, "", "")
	}

	h.logger.Info("Transcription response sent",
		slog.String("request_id", requestID),
		slog.Duration("elapsed", time.Since(start)))
}

func writeTranscript(w http.ResponseWriter, text, prefix, suffix string) {
	// json.Marshal keeps quotes and newlines in the transcript escaped
	body, _ := json.Marshal(map[string]string{"transcript": text})
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, prefix+string(body)+suffix)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "Listen address")
	mode := flag.String("mode", modeJSON, "Response mode: json, bom, plain, quoted, empty, error")
	transcript := flag.String("transcript", "", "Fixed transcript to return (defaults to a summary of the upload)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	switch *mode {
	case modeJSON, modeBOM, modePlain, modeQuoted, modeEmpty, modeError:
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.Handle("/transcribe", &handler{mode: *mode, transcript: *transcript, logger: logger})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
	})

	logger.Info("Fake ASR server listening",
		slog.String("addr", *addr),
		slog.String("endpoint", "/transcribe"),
		slog.String("mode", *mode))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
