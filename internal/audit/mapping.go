package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Auth route overrides: audit under the actions the auth service itself records.
var authRoutes = map[string]ActionResource{
	"POST /auth/register": {Action: ActionRegister, Resource: "auth"},
	"POST /auth/login":    {Action: ActionLoginSuccess, Resource: "auth"},
	"POST /auth/refresh":  {Action: ActionTokenRefresh, Resource: "auth"},
	"POST /auth/logout":   {Action: ActionLogout, Resource: "auth"},
}

// ParseRoute returns action and resource for an HTTP method and chi route
// pattern (e.g. GET /listings/{id}). Action is a verb: get, list, create,
// update, delete. Resource is the first path segment, singularized
// (e.g. /listings/{id} -> listing).
func ParseRoute(method, pattern string) ActionResource {
	if ar, ok := authRoutes[method+" "+pattern]; ok {
		return ar
	}
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	resource := singularize(segments[0])
	hasID := len(segments) > 1 && strings.HasPrefix(segments[1], "{")
	var action string
	switch method {
	case "GET":
		if hasID {
			action = "get"
		} else {
			action = "list"
		}
	case "POST":
		action = "create"
	case "PUT", "PATCH":
		action = "update"
	case "DELETE":
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return ActionResource{Action: action, Resource: resource}
}

func singularize(s string) string {
	s = strings.ToLower(s)
	if strings.HasSuffix(s, "ies") {
		return strings.TrimSuffix(s, "ies") + "y"
	}
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return strings.TrimSuffix(s, "s")
	}
	return s
}
