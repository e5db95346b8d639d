package handler

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ListTools provides a list of all available tools
func (h *LithophaneHandler) ListTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("select_file",
			mcp.WithDescription(`Select the image to upload. Replaces any previous selection. The current artifact, if any, stays available until a new submission succeeds.`),
			mcp.WithString("file_path",
				mcp.Required(),
				mcp.Description("Absolute path to the image file"),
			),
			mcp.WithString("content_type",
				mcp.Description("MIME type of the file. Detected from the content when omitted."),
			),
		),
		mcp.NewTool("submit",
			mcp.WithDescription(`Upload the selected image to the lithophane generator and store the returned STL as a downloadable artifact. Returns a processing status with a submission_id if the generator is still working after wait_time.`),
			mcp.WithNumber("wait_time",
				mcp.Description("Seconds to wait for the result before returning a processing status"),
				mcp.Min(0),
				mcp.Max(maxWaitSeconds),
			),
		),
		mcp.NewTool("continue_operation",
			mcp.WithDescription(`Wait for an in-flight submission started by submit.`),
			mcp.WithString("submission_id",
				mcp.Description("Submission ID returned by submit. Defaults to the current submission."),
			),
			mcp.WithNumber("wait_time",
				mcp.Description("Seconds to wait before returning a processing status again"),
				mcp.Min(0),
				mcp.Max(maxWaitSeconds),
			),
		),
		mcp.NewTool("get_status",
			mcp.WithDescription(`Report the flow status, the selected file and the current artifact without waiting.`),
		),
		mcp.NewTool("save_artifact",
			mcp.WithDescription(`Copy the current artifact to a local path. A directory path receives the artifact under its download filename.`),
			mcp.WithString("output_path",
				mcp.Required(),
				mcp.Description("Destination file or directory"),
			),
		),
		mcp.NewTool("list_artifacts",
			mcp.WithDescription(`List the artifacts currently held in local storage.`),
		),
	}
}
