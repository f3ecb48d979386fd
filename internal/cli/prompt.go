package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptYesNo asks a yes/no question on w and reads the answer from r.
// Anything other than "y" or "yes" counts as no.
func PromptYesNo(r io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", question)

	response, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	response = strings.TrimSpace(strings.ToLower(response))

	switch response {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// PrintDependencyStatus prints a summary of dependency status
func PrintDependencyStatus(deps []DependencyStatus) {
	fmt.Println("\nCLI Tool Status:")
	fmt.Println("----------------")

	for _, dep := range deps {
		icon := "+"
		if !dep.Installed {
			icon = "-"
		}

		version := dep.Version
		if version == "" {
			version = "not installed"
		}

		required := ""
		if dep.Required {
			required = " (required)"
		}

		fmt.Printf("  [%s] %s: %s%s\n", icon, dep.Name, version, required)

		if dep.Message != "" {
			fmt.Printf("      %s\n", dep.Message)
		}
	}

	fmt.Println()
}
