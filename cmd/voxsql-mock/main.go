// Command voxsql-mock serves fake transcription and NL->SQL endpoints for
// running voxsql locally without the real models.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skypro1111/voxsql/internal/audio"
	"github.com/skypro1111/voxsql/internal/transcription"
)

var (
	transcribeAddr string
	nlsqlAddr      string
	fixedText      string
	defaultTable   string
	delay          time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "voxsql-mock",
	Short:        "Fake transcription and NL->SQL services for local testing",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&transcribeAddr, "transcribe-addr", "127.0.0.1:8000", "Address of the transcription endpoint")
	rootCmd.Flags().StringVar(&nlsqlAddr, "nlsql-addr", "127.0.0.1:9000", "Address of the NL->SQL endpoint")
	rootCmd.Flags().StringVar(&fixedText, "text", "how many orders are there", "Transcript returned for every utterance")
	rootCmd.Flags().StringVar(&defaultTable, "table", "Orders", "Table used when the question names none")
	rootCmd.Flags().DurationVar(&delay, "delay", 200*time.Millisecond, "Simulated processing time")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// verboseResponse mirrors the verbose_json transcription format
type verboseResponse struct {
	Text     string                  `json:"text"`
	Language string                  `json:"language"`
	Duration float64                 `json:"duration"`
	Segments []transcription.Segment `json:"segments"`
}

func transcribeHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Error getting audio file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		_, info, err := audio.DecodeWAV(file)
		if err != nil {
			http.Error(w, "Invalid WAV: "+err.Error(), http.StatusBadRequest)
			return
		}

		logger.Info("Transcription request",
			slog.String("filename", header.Filename),
			slog.Float64("duration", info.Duration),
			slog.Int("sample_rate", info.SampleRate),
			slog.String("model", r.FormValue("model")),
			slog.String("beam_size", r.FormValue("beam_size")),
			slog.String("language", r.FormValue("language")),
		)

		time.Sleep(delay)

		resp := verboseResponse{
			Text:     fixedText,
			Language: "en",
			Duration: info.Duration,
			Segments: []transcription.Segment{{
				Text:         fixedText,
				Start:        0,
				End:          info.Duration,
				AvgLogprob:   -0.2,
				NoSpeechProb: 0.05,
			}},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

var tableWord = regexp.MustCompile(`(?i)\b(?:from|in|of)\s+(?:the\s+)?([a-z_][a-z0-9_]*)`)

// generateSQL maps a few question shapes onto statements
func generateSQL(question string) map[string]any {
	q := strings.ToLower(strings.TrimSpace(question))

	table := defaultTable
	if m := tableWord.FindStringSubmatch(q); m != nil && m[1] != "orders" {
		table = m[1]
	}

	switch {
	case strings.HasPrefix(q, "how many"), strings.HasPrefix(q, "count"):
		return map[string]any{"intent": "sql", "sql": fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", table)}
	case strings.HasPrefix(q, "show"), strings.HasPrefix(q, "list"):
		return map[string]any{"intent": "sql", "sql": fmt.Sprintf("SELECT * FROM %s LIMIT 10", table)}
	case strings.HasPrefix(q, "delete"), strings.HasPrefix(q, "drop"):
		return map[string]any{"intent": "sql", "sql": fmt.Sprintf("DROP TABLE %s", table)}
	}

	return map[string]any{"intent": "chat", "answer": "I can count, show, or list rows."}
}

func nlsqlHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Question string `json:"question"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		resp := generateSQL(req.Question)
		logger.Info("NL->SQL request",
			slog.String("question", req.Question),
			slog.String("role", req.Role),
			slog.Any("intent", resp["intent"]),
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	transcribeMux := http.NewServeMux()
	transcribeMux.HandleFunc("/v1/audio/transcriptions", transcribeHandler(logger))

	nlsqlMux := http.NewServeMux()
	nlsqlMux.HandleFunc("/generate_sql", nlsqlHandler(logger))

	servers := []*http.Server{
		{Addr: transcribeAddr, Handler: transcribeMux, ReadHeaderTimeout: 5 * time.Second},
		{Addr: nlsqlAddr, Handler: nlsqlMux, ReadHeaderTimeout: 5 * time.Second},
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("Mock server listening", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		srv.Shutdown(shutdownCtx)
	}

	return runErr
}
