// cmd/tools/registry-check/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"fleet-workflow/internal/common/validation"
	ordercommand "fleet-workflow/internal/workers/fleet/order-command"
	"fleet-workflow/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listPath := listCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	inputCmd := flag.NewFlagSet("check-input", flag.ExitOnError)
	inputPath := inputCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	taskType := inputCmd.String("taskType", "", "Task type whose input schema applies (e.g., fleet-order-create)")
	file := inputCmd.String("file", "", "JSON file holding the job variables")

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err = validateRegistry(*validatePath); err == nil {
			fmt.Println("Registry validation passed.")
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		err = listActivities(os.Stdout, *listPath)

	case "check-input":
		inputCmd.Parse(os.Args[2:])
		if *taskType == "" || *file == "" {
			fmt.Println("Error: taskType and file are required for check-input.")
			inputCmd.Usage()
			os.Exit(1)
		}
		err = checkInput(os.Stdout, *inputPath, *taskType, *file)

	default:
		help(os.Stdout)
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// validateRegistry checks that the registry parses, its schemas compile, its timeouts parse
// and that it covers exactly the task types the order worker serves.
func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	if _, err := validation.NewSchemaSet(reg); err != nil {
		return err
	}

	for _, a := range reg.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity for %s has no id", a.TaskType)
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %s: invalid timeout %q", a.ID, a.Timeout)
			}
		}
		if _, ok := ordercommand.TaskTypes[a.TaskType]; !ok {
			return fmt.Errorf("activity %s: no worker serves task type %s", a.ID, a.TaskType)
		}
	}
	for taskType := range ordercommand.TaskTypes {
		if _, ok := reg.Find(taskType); !ok {
			return fmt.Errorf("task type %s is served but not registered", taskType)
		}
	}
	return nil
}

func listActivities(w io.Writer, path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	activities := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(activities, func(i, j int) bool { return activities[i].TaskType < activities[j].TaskType })
	for _, a := range activities {
		fmt.Fprintf(w, "%-22s %-22s %s\n", a.TaskType, a.ID, a.DisplayName)
	}
	return nil
}

// checkInput validates a variables document against the input schema of taskType.
func checkInput(w io.Writer, path, taskType, file string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	if _, ok := reg.Find(taskType); !ok {
		return fmt.Errorf("task type %s is not registered", taskType)
	}
	schemas, err := validation.NewSchemaSet(reg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read variables: %w", err)
	}
	var variables map[string]interface{}
	if err := json.Unmarshal(data, &variables); err != nil {
		return fmt.Errorf("parse variables: %w", err)
	}

	result, err := schemas.Validate(taskType, variables)
	if err != nil {
		return err
	}
	if !result.Valid {
		for _, msg := range result.GetErrorMessages() {
			fmt.Fprintln(w, msg)
		}
		return fmt.Errorf("%d schema violations", len(result.Errors))
	}
	fmt.Fprintf(w, "variables are valid for %s\n", taskType)
	return nil
}

func help(w io.Writer) {
	fmt.Fprintln(w, "Usage: registry-check <command> [options]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  validate     Check the registry against the served task types")
	fmt.Fprintln(w, "  list         List registered activities")
	fmt.Fprintln(w, "  check-input  Validate a job variables file against a task type's input schema")
}
