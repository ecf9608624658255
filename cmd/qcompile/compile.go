package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-ql/qcompiler/ast"
	"github.com/lattice-ql/qcompiler/catalog"
	"github.com/lattice-ql/qcompiler/compiler"
	"github.com/lattice-ql/qcompiler/explain"
)

func (c *CLI) newCompileCmd() *cobra.Command {
	var sqlFile string

	cmd := &cobra.Command{
		Use:   "compile [SQL]",
		Short: "Compile a SQL statement into a task plan and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(sqlFile, args)
			if err != nil {
				return err
			}
			res, err := c.compile(sql)
			if err != nil {
				return c.fail("compile error: %v", err)
			}
			fmt.Println(explain.Summary(res.Plan))
			if res.CacheHit {
				fmt.Println("(served from plan cache)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sqlFile, "file", "", "read the SQL statement from a file instead of an argument")
	return cmd
}

func (c *CLI) newExplainCmd() *cobra.Command {
	var sqlFile string

	cmd := &cobra.Command{
		Use:   "explain [SQL]",
		Short: "Compile a SQL statement and print its operator tree and task plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(sqlFile, args)
			if err != nil {
				return err
			}
			res, err := c.compile(sql)
			if err != nil {
				return c.fail("compile error: %v", err)
			}

			r := explain.NewRenderer(c.useColor)
			if res.Factory != nil {
				for _, dest := range res.QB.Destinations() {
					fmt.Printf("-- destination %s --\n", dest)
					fmt.Print(r.RenderOperatorTree(res.Factory, res.Roots[dest]))
				}
			}
			fmt.Println(r.RenderTaskPlan(res.Plan))
			return nil
		},
	}

	cmd.Flags().StringVar(&sqlFile, "file", "", "read the SQL statement from a file instead of an argument")
	return cmd
}

func (c *CLI) compile(sql string) (*compiler.Result, error) {
	root, err := ast.FromSQL(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	ms, err := loadCatalog(c.catalogPath)
	if err != nil {
		return nil, err
	}

	sess, err := c.loadSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return compiler.Compile(root, sess, ms, catalog.NewDefaultFunctionRegistry())
}

func readSQL(sqlFile string, args []string) (string, error) {
	if sqlFile != "" {
		data, err := os.ReadFile(sqlFile)
		if err != nil {
			return "", fmt.Errorf("reading --file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading SQL from stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no SQL statement given (pass it as an argument, --file, or on stdin)")
	}
	return string(data), nil
}
