package transcript

const errLoggerKey = "err"
