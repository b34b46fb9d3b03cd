// Command taskctl is a one-shot CLI over the TaskStore (C9): create,
// list, show, and complete tasks and task lists from the shell, the way
// the teacher's agents/chat_cli talks to the broker over a gRPC client
// instead of a store handle. The agent-orchestration CLI surface itself
// is out of scope; this is ambient tooling for operating the task store
// the control plane persists to.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/orbitctl/agentplane/internal/config"
	"github.com/orbitctl/agentplane/internal/tasks"
)

func usage() {
	fmt.Fprintln(os.Stderr, `taskctl <command> [flags]

Commands:
  create   --title T [--description D] [--priority P] [--depends-on a,b,c]
  list     [--status S]
  show     --id ID
  complete --id ID
  lists
  create-list --name N [--tasks a,b,c]`)
}

func openStore() *tasks.Store {
	cfg := config.Load()
	store, err := tasks.Open(cfg.TaskStoreDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening task store at %s: %v\n", cfg.TaskStoreDir, err)
		os.Exit(1)
	}
	return store
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		title := fs.String("title", "", "task title (required)")
		description := fs.String("description", "", "task description")
		priority := fs.String("priority", "", "low|medium|high|critical")
		dependsOn := fs.String("depends-on", "", "comma-separated task ids this task depends on")
		fs.Parse(args)
		if *title == "" {
			fmt.Fprintln(os.Stderr, "--title is required")
			os.Exit(2)
		}
		store := openStore()
		task, err := store.CreateTask(tasks.Task{
			Title:       *title,
			Description: *description,
			Priority:    tasks.Priority(*priority),
			DependsOn:   splitCSV(*dependsOn),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "creating task: %v\n", err)
			os.Exit(1)
		}
		printJSON(task)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		status := fs.String("status", "", "filter by status")
		fs.Parse(args)
		store := openStore()
		all, err := store.ListTasks()
		if err != nil {
			fmt.Fprintf(os.Stderr, "listing tasks: %v\n", err)
			os.Exit(1)
		}
		if *status == "" {
			printJSON(all)
			return
		}
		filtered := make([]tasks.Task, 0, len(all))
		for _, t := range all {
			if string(t.Status) == *status {
				filtered = append(filtered, t)
			}
		}
		printJSON(filtered)

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		id := fs.String("id", "", "task id (required)")
		fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "--id is required")
			os.Exit(2)
		}
		store := openStore()
		task, err := store.GetTask(*id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetching task: %v\n", err)
			os.Exit(1)
		}
		printJSON(task)

	case "complete":
		fs := flag.NewFlagSet("complete", flag.ExitOnError)
		id := fs.String("id", "", "task id (required)")
		fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "--id is required")
			os.Exit(2)
		}
		store := openStore()
		task, err := store.CompleteTask(*id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "completing task: %v\n", err)
			os.Exit(1)
		}
		printJSON(task)

	case "lists":
		store := openStore()
		all, err := store.ListLists()
		if err != nil {
			fmt.Fprintf(os.Stderr, "listing task lists: %v\n", err)
			os.Exit(1)
		}
		printJSON(all)

	case "create-list":
		fs := flag.NewFlagSet("create-list", flag.ExitOnError)
		name := fs.String("name", "", "list name (required)")
		taskIDs := fs.String("tasks", "", "comma-separated task ids")
		fs.Parse(args)
		if *name == "" {
			fmt.Fprintln(os.Stderr, "--name is required")
			os.Exit(2)
		}
		store := openStore()
		list, err := store.CreateList(tasks.TaskList{
			Name:    *name,
			TaskIDs: splitCSV(*taskIDs),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "creating task list: %v\n", err)
			os.Exit(1)
		}
		printJSON(list)

	default:
		usage()
		os.Exit(2)
	}
}
