// Package main provides the loomdb CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	mcpsdk "github.com/mark3labs/mcp-go/server"

	"github.com/loomdb/loomdb/pkg/config"
	"github.com/loomdb/loomdb/pkg/engine"
	"github.com/loomdb/loomdb/pkg/mcpserver"
	"github.com/loomdb/loomdb/pkg/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loomdb",
		Short: "loomdb - embedded vector database for agent memory and RAG",
		Long: `loomdb is a vector database written in Go: an HNSW approximate
nearest-neighbor index, soft multi-tenant isolation, a TTL sweeper, and a
retrieval-augmented-generation layer, exposed over HTTP and MCP.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loomdb v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the loomdb HTTP and MCP servers",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Path to a YAML config file overlaying environment settings")
	serveCmd.Flags().Int("http-port", 0, "HTTP API port (overrides config)")
	serveCmd.Flags().Int("mcp-port", 0, "MCP tool server port (overrides config)")
	serveCmd.Flags().Bool("allow-anonymous", false, "Allow requests without a bearer token")
	rootCmd.AddCommand(serveCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import a collection's HNSW graph against a running server",
	}
	snapshotCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of a running loomdb HTTP server")
	snapshotCmd.PersistentFlags().String("token", "", "Bearer token, if the server requires one")

	exportCmd := &cobra.Command{
		Use:   "export <collection> <file>",
		Short: "Write a collection's snapshot to a file as JSON",
		Args:  cobra.ExactArgs(2),
		RunE:  runSnapshotExport,
	}
	importCmd := &cobra.Command{
		Use:   "import <collection> <file>",
		Short: "Create a collection from a previously exported snapshot file",
		Args:  cobra.ExactArgs(2),
		RunE:  runSnapshotImport,
	}
	snapshotCmd.AddCommand(exportCmd, importCmd)
	rootCmd.AddCommand(snapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if err := cfg.ApplyYAMLFile(configPath); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
	}

	if httpPort, _ := cmd.Flags().GetInt("http-port"); httpPort != 0 {
		cfg.Server.Port = httpPort
	}
	if mcpPort, _ := cmd.Flags().GetInt("mcp-port"); mcpPort != 0 {
		cfg.MCP.Port = mcpPort
	}
	if allowAnon, _ := cmd.Flags().GetBool("allow-anonymous"); allowAnon {
		cfg.Server.AllowAnonymous = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg.Runtime.ApplyRuntimeMemory()

	fmt.Printf("starting loomdb v%s\n", version)
	fmt.Printf("  http:  %s:%d\n", cfg.Server.Address, cfg.Server.Port)
	if cfg.MCP.Enabled {
		fmt.Printf("  mcp:   %s:%d\n", cfg.MCP.Address, cfg.MCP.Port)
	}
	fmt.Printf("  embedding: %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model)

	eng := engine.New(engine.Config{})
	defer eng.Close()

	httpSrv := server.New(eng, server.Config{
		Address:        cfg.Server.Address,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		JWTSecret:      []byte(cfg.Server.JWTSecret),
		AllowAnonymous: cfg.Server.AllowAnonymous,
	})
	if err := httpSrv.Start(); err != nil {
		return fmt.Errorf("starting http server: %w", err)
	}

	if cfg.MCP.Enabled {
		mcpSrv := mcpserver.NewServer(&mcpserver.Deps{Engine: eng})
		mcpHTTP := mcpsdk.NewStreamableHTTPServer(mcpSrv,
			mcpsdk.WithEndpointPath("/mcp"),
		)
		addr := fmt.Sprintf("%s:%d", cfg.MCP.Address, cfg.MCP.Port)
		go func() {
			if err := mcpHTTP.Start(addr); err != nil {
				fmt.Printf("mcp server error: %v\n", err)
			}
		}()
	}

	fmt.Println("ready, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Stop(ctx); err != nil {
		return fmt.Errorf("stopping http server: %w", err)
	}
	fmt.Println("stopped")
	return nil
}

func snapshotRequest(cmd *cobra.Command, method, collectionName string, body io.Reader) (*http.Response, error) {
	baseURL, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")

	url := fmt.Sprintf("%s/collections/%s/snapshot", baseURL, collectionName)
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	return resp, nil
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
	collectionName, path := args[0], args[1]

	resp, err := snapshotRequest(cmd, http.MethodGet, collectionName, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, msg)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("exported collection %q to %s\n", collectionName, path)
	return nil
}

func runSnapshotImport(cmd *cobra.Command, args []string) error {
	collectionName, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", path, err)
	}

	resp, err := snapshotRequest(cmd, http.MethodPost, collectionName, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, msg)
	}

	fmt.Printf("imported collection %q from %s\n", collectionName, path)
	return nil
}
