// Command intercomctl is the operator CLI for agent-intercom: a thin
// wrapper over the daemon's local IPC socket (spec 6.3/4.11) for
// environments where the Slack chat surface isn't available or
// convenient — CI, a bastion host, or a quick one-off approve/reject
// during development.
//
// Usage:
//
//	intercomctl list
//	intercomctl approve --id <request-id>
//	intercomctl reject --id <request-id> --reason "needs a narrower diff"
//	intercomctl resume [--id <session-id>] [--instruction "..."]
//	intercomctl mode --mode remote|local|hybrid
//	intercomctl pause [--id <session-id>]
//	intercomctl terminate [--id <session-id>]
//	intercomctl version
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/softwaresalt/agent-intercom/internal/ipc"
	"github.com/softwaresalt/agent-intercom/internal/opcli"
	"github.com/softwaresalt/agent-intercom/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]

	if cmd == "version" {
		fmt.Println(version.GitCommit)
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	ipcName := fs.String("ipc-name", "agent-intercom", "daemon IPC socket basename")
	id := fs.String("id", "", "target request or session id")
	reason := fs.String("reason", "", "reason text (reject)")
	instruction := fs.String("instruction", "", "operator instruction (resume)")
	mode := fs.String("mode", "", "operational mode: remote, local, or hybrid")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	req := ipc.Request{Command: cmd}
	if *id != "" {
		req.ID = id
	}
	if *reason != "" {
		req.Reason = reason
	}
	if *instruction != "" {
		req.Instruction = instruction
	}
	if *mode != "" {
		req.Mode = mode
	}

	switch cmd {
	case "list", "approve", "reject", "resume", "mode", "pause", "terminate":
	default:
		usage()
		os.Exit(1)
	}

	styles := stylesFor(os.Getenv("NO_COLOR") != "")
	socketPath := filepath.Join(os.TempDir(), *ipcName+".sock")
	c := newClient(socketPath, os.Getenv("AGENT_INTERCOM_IPC_AUTH_TOKEN"))

	resp, err := c.send(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, styles.OutputFailure.Render("Error: "+resp.Error))
		os.Exit(1)
	}

	printResponse(cmd, resp, styles)
}

func stylesFor(noColor bool) opcli.Styles {
	if noColor {
		return opcli.NoColorStyles()
	}
	return opcli.DefaultStyles()
}

func printResponse(cmd string, resp *ipc.Response, styles opcli.Styles) {
	if cmd == "list" {
		printSessionList(resp, styles)
		return
	}

	data, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		fmt.Println(styles.OutputSuccess.Render("ok"))
		return
	}
	fmt.Println(string(data))
}

func printSessionList(resp *ipc.Response, styles opcli.Styles) {
	body, ok := resp.Data.(map[string]any)
	if !ok {
		fmt.Println("no sessions")
		return
	}
	sessions, ok := body["sessions"].([]any)
	if !ok || len(sessions) == 0 {
		fmt.Println(styles.StatusLine.Render("no active sessions"))
		return
	}
	for _, raw := range sessions {
		s, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("%s  %s  %s\n",
			styles.ApprovalIndex.Render(fmt.Sprint(s["session_id"])),
			styles.OutputSuccess.Render(fmt.Sprint(s["status"])),
			fmt.Sprint(s["workspace_root"]))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: intercomctl <list|approve|reject|resume|mode|pause|terminate|version> [flags]")
}
