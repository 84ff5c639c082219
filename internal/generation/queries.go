package generation

import "encoding/json"

// GraphQL operations sent to the service. Operation names are unique so
// callers and tests can tell the calls apart.
const (
	createTaskQuery  = `mutation createGenerationTask($parameters: JSONObject!) { createGenerationTask(parameters: $parameters) { id } }`
	taskStatusQuery  = `query getTaskStatus($id: ID!) { task(id: $id) { id status } }`
	taskOutputsQuery = `query getTaskOutputs($id: ID!) { task(id: $id) { outputs } }`
	mediaQuery       = `query getMediaById($id: String!) { media(id: $id) { urls { variant url } } }`
)

// Operation names, as reported by pixai.OperationName.
const (
	OpCreateTask  = "createGenerationTask"
	OpTaskStatus  = "getTaskStatus"
	OpTaskOutputs = "getTaskOutputs"
	OpMedia       = "getMediaById"
)

type createTaskData struct {
	CreateGenerationTask *struct {
		ID string `json:"id"`
	} `json:"createGenerationTask"`
}

type taskStatusData struct {
	Task *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"task"`
}

type taskOutputsData struct {
	Task *struct {
		Outputs map[string]json.RawMessage `json:"outputs"`
	} `json:"task"`
}

type mediaData struct {
	Media *struct {
		URLs []mediaURL `json:"urls"`
	} `json:"media"`
}

type mediaURL struct {
	Variant string  `json:"variant"`
	URL     *string `json:"url"`
}
