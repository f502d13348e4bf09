package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSubmitCmd создаёт команду постановки задачи.
func NewSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var argsJSON string
	var kwargsJSON string
	var queue string
	var taskID string

	cmd := &cobra.Command{
		Use:   "submit TASK",
		Short: "Submit a task to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := SubmitTaskRequest{
				Task:  args[0],
				ID:    taskID,
				Queue: queue,
			}

			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &req.Args); err != nil {
					return fmt.Errorf("invalid --args, expected JSON array: %w", err)
				}
			}
			if kwargsJSON != "" {
				if err := json.Unmarshal([]byte(kwargsJSON), &req.Kwargs); err != nil {
					return fmt.Errorf("invalid --kwargs, expected JSON object: %w", err)
				}
			}

			resp, err := client.SubmitTask(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task submitted: %s", resp.TaskID))
			out.Print(
				[]string{"TASK_ID", "TASK", "QUEUE"},
				[][]string{{resp.TaskID, resp.Task, resp.Queue}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", `Positional arguments as JSON array, e.g. '[2, 3]'`)
	cmd.Flags().StringVar(&kwargsJSON, "kwargs", "", `Keyword arguments as JSON object, e.g. '{"user": "alice"}'`)
	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (default queue if not specified)")
	cmd.Flags().StringVar(&taskID, "id", "", "Task ID (generated if not specified)")

	return cmd
}

// NewResultCmd создаёт команду запроса результата задачи.
func NewResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "result TASK_ID",
		Short: "Show the stored result of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.GetResult(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"TASK_ID", "STATUS", "RESULT", "DATE_DONE"},
				[][]string{{res.TaskID, res.Status, string(res.Result), res.DateDone}},
				res,
			)
			return nil
		},
	}
}
