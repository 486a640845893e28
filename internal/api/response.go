package api

// Response is the envelope every endpoint answers with. Code 0 means
// success; code 1 carries a describing message in Msg.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func success(data any, msg string) Response {
	return Response{Code: 0, Msg: msg, Data: data}
}

func failure(msg string) Response {
	return Response{Code: 1, Msg: msg}
}
