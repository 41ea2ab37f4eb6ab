package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/printmon/internal/core"
	"github.com/joshp123/printmon/internal/rpc"
	"github.com/joshp123/printmon/plugins/prusalink"
)

const registryService = core.RegistryPackage + "." + core.RegistryName

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List or describe loaded plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded plugins",
	Args:  cobra.NoArgs,
	RunE:  runPluginsList,
}

var pluginsDescribeCmd = &cobra.Command{
	Use:   "describe <plugin_id>",
	Short: "Show plugin details and AGENTS.md",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginsDescribe,
}

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "List PrusaLink sensors with their current state",
	Args:  cobra.NoArgs,
	RunE:  runSensors,
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List gRPC services via reflection",
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

var methodsCmd = &cobra.Command{
	Use:   "methods <service>",
	Short: "List methods of a gRPC service",
	Args:  cobra.ExactArgs(1),
	RunE:  runMethods,
}

var callData string

var callCmd = &cobra.Command{
	Use:   "call <service/method>",
	Short: "Invoke a method with a JSON body (--data or stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCall,
}

func init() {
	callCmd.Flags().StringVar(&callData, "data", "", "JSON request body")
}

// withConn dials the daemon for the duration of fn.
func withConn(cmd *cobra.Command, fn func(ctx context.Context, conn *grpc.ClientConn) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	addr := resolveAddr(addrFlag)
	conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

func runPluginsList(cmd *cobra.Command, _ []string) error {
	return withConn(cmd, func(ctx context.Context, conn *grpc.ClientConn) error {
		resp, err := rpc.Invoke(ctx, conn, registryService, "ListPlugins", nil)
		if err != nil {
			return fmt.Errorf("list plugins: %w", err)
		}
		out := newOutput(cmd, jsonOutput)
		if out.json {
			return out.printJSON(resp.AsMap())
		}
		rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
		for _, item := range listField(resp, "plugins") {
			rows = append(rows, []string{str(item, "plugin_id"), str(item, "display_name"), str(item, "version"), str(item, "status")})
		}
		out.table(rows)
		return nil
	})
}

func runPluginsDescribe(cmd *cobra.Command, args []string) error {
	return withConn(cmd, func(ctx context.Context, conn *grpc.ClientConn) error {
		req, err := structpb.NewStruct(map[string]any{"plugin_id": args[0]})
		if err != nil {
			return err
		}
		resp, err := rpc.Invoke(ctx, conn, registryService, "DescribePlugin", req)
		if err != nil {
			return fmt.Errorf("describe plugin: %w", err)
		}
		out := newOutput(cmd, jsonOutput)
		if out.json {
			return out.printJSON(resp.AsMap())
		}

		plugin, _ := resp.AsMap()["plugin"].(map[string]any)
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "id: %s\n", str(plugin, "plugin_id"))
		fmt.Fprintf(w, "name: %s\n", str(plugin, "display_name"))
		fmt.Fprintf(w, "version: %s\n", str(plugin, "version"))
		fmt.Fprintf(w, "status: %s\n", str(plugin, "status"))
		if msg := str(plugin, "health_message"); msg != "" {
			fmt.Fprintf(w, "health: %s\n", msg)
		}
		fmt.Fprintln(w, "services:")
		services, _ := plugin["services"].([]any)
		for _, svc := range services {
			fmt.Fprintf(w, "  - %v\n", svc)
		}
		fmt.Fprintln(w, "dashboards:")
		dashboards, _ := plugin["dashboards"].([]any)
		for _, d := range dashboards {
			dash, _ := d.(map[string]any)
			fmt.Fprintf(w, "  - %s (%s)\n", str(dash, "name"), str(dash, "path"))
		}
		fmt.Fprintln(w, "agents_md:")
		fmt.Fprintln(w, str(plugin, "agents_md"))
		return nil
	})
}

func runSensors(cmd *cobra.Command, _ []string) error {
	return withConn(cmd, func(ctx context.Context, conn *grpc.ClientConn) error {
		resp, err := rpc.Invoke(ctx, conn, prusalink.ServicePkg+"."+prusalink.ServiceName, "ListSensors", nil)
		if err != nil {
			return fmt.Errorf("list sensors: %w", err)
		}
		out := newOutput(cmd, jsonOutput)
		if out.json {
			return out.printJSON(resp.AsMap())
		}
		out.table(sensorRows(listField(resp, "sensors")))
		return nil
	})
}

func sensorRows(sensors []map[string]any) [][]string {
	rows := [][]string{{"ENTITY", "STATE", "UNIT", "ENABLED"}}
	for _, s := range sensors {
		state := str(s, "state")
		if state == "" {
			state = "-"
		}
		enabled := "no"
		if on, _ := s["enabled"].(bool); on {
			enabled = "yes"
		}
		rows = append(rows, []string{str(s, "entity_id"), state, str(s, "unit"), enabled})
	}
	return rows
}

func runServices(cmd *cobra.Command, _ []string) error {
	return withConn(cmd, func(ctx context.Context, conn *grpc.ClientConn) error {
		services, err := grpcurl.ListServices(reflectionSource(ctx, conn))
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		for _, service := range services {
			fmt.Fprintln(cmd.OutOrStdout(), service)
		}
		return nil
	})
}

func runMethods(cmd *cobra.Command, args []string) error {
	return withConn(cmd, func(ctx context.Context, conn *grpc.ClientConn) error {
		methods, err := grpcurl.ListMethods(reflectionSource(ctx, conn), args[0])
		if err != nil {
			return fmt.Errorf("list methods: %w", err)
		}
		for _, method := range methods {
			fmt.Fprintln(cmd.OutOrStdout(), method)
		}
		return nil
	})
}

func runCall(cmd *cobra.Command, args []string) error {
	return withConn(cmd, func(ctx context.Context, conn *grpc.ClientConn) error {
		descSource := reflectionSource(ctx, conn)

		var reader io.Reader
		switch {
		case callData != "":
			reader = strings.NewReader(callData)
		case isStdinTerminal():
			reader = strings.NewReader("{}")
		default:
			reader = cmd.InOrStdin()
		}

		parser, formatter, err := grpcurl.RequestParserAndFormatter(grpcurl.FormatJSON, descSource, reader, grpcurl.FormatOptions{})
		if err != nil {
			return fmt.Errorf("parse request: %w", err)
		}

		handler := grpcurl.NewDefaultEventHandler(cmd.OutOrStdout(), descSource, formatter, false)
		if err := grpcurl.InvokeRPC(ctx, descSource, conn, args[0], nil, handler, parser.Next); err != nil {
			return fmt.Errorf("invoke: %w", err)
		}
		if handler.Status != nil && handler.Status.Err() != nil {
			return handler.Status.Err()
		}
		return nil
	})
}

func reflectionSource(ctx context.Context, conn *grpc.ClientConn) grpcurl.DescriptorSource {
	client := grpcreflect.NewClientAuto(ctx, conn)
	return grpcurl.DescriptorSourceFromServer(ctx, client)
}

func isStdinTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func listField(resp *structpb.Struct, name string) []map[string]any {
	items, _ := resp.AsMap()[name].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
