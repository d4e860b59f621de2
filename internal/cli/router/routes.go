package router

// Views are the pages of the application
type Views struct {
	Home      View
	Dashboard View
	SignIn    View
	SignUp    View
	Profile   View
	Terms     View
	Privacy   View
}

// DefaultRoutes is the application's route table
func DefaultRoutes(v Views) []Route {
	return []Route{
		{Path: "/", Name: "home", View: v.Home},
		{Path: "/dashboard", Name: "dashboard", View: v.Dashboard, RequiresAuth: true},
		{Path: "/signin", Name: "signin", View: v.SignIn},
		{Path: "/signup", Name: "signup", View: v.SignUp},
		{Path: "/profile", Name: "profile", View: v.Profile, RequiresAuth: true},
		{Path: "/terms", Name: "terms", View: v.Terms},
		{Path: "/privacy", Name: "privacy", View: v.Privacy},
	}
}
