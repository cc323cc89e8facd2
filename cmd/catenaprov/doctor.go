package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcci-catena/catenaprov/internal/doctor"
	"github.com/mcci-catena/catenaprov/internal/transport"
)

func newDoctorCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "doctor [script ...]",
		Short: "Check that a provisioning run could succeed",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := doctor.Run(doctor.Options{
				Port:    port,
				Scripts: args,
				Lister:  listPortNames,
			})

			for _, r := range results {
				mark := "ok"
				if !r.OK {
					mark = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s: %s\n", mark, r.Name, r.Detail)
			}

			if !doctor.Healthy(results) {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "serial port name to check")
	return cmd
}

func listPortNames() ([]string, error) {
	ports, err := transport.ListPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names, nil
}
