package apiclient

// Backend route constants
// All backend paths are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	EndpointLogin     = "/auth/login"
	EndpointLogout    = "/auth/logout"
	EndpointSendOTP   = "/auth/send-otp"
	EndpointVerifyOTP = "/auth/verify-otp"
	EndpointRegister  = "/auth/register"

	// Profile Routes
	EndpointProfile = "/users/profile"

	// Marketplace Routes
	EndpointCrops = "/crops"
	EndpointLots  = "/lots"
	EndpointBids  = "/bids"

	// Wallet Routes
	EndpointWalletBalance      = "/wallet/balance"
	EndpointWalletTransactions = "/wallet/transactions"

	// Logistics Routes
	EndpointTransportVehicles = "/transport/vehicles"
	EndpointTransportBookings = "/transport/bookings"

	// Advisory Routes
	EndpointWeather = "/weather"
	EndpointSchemes = "/schemes"

	// Community Routes
	EndpointFPO             = "/fpo"
	EndpointLearningCourses = "/learning/courses"
	EndpointNotifications   = "/notifications"
)
