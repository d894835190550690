package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/Allow2/brave-core-sub002/remote/remotetest"
)

var stubPort int

var stubServerCmd = &cobra.Command{
	Use:   "stubserver",
	Short: "Run a local fake family service for integration testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		fake := remotetest.New()

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/", fake.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", stubPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("stub server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Stub family service on port %d\n", stubPort)
		fmt.Printf("Pair token: %s\n", fake.Credentials().PairToken)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			return server.Close()
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(stubServerCmd)
	stubServerCmd.Flags().IntVarP(&stubPort, "port", "p", 8099, "Port to listen on")
}
